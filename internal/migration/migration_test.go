package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkwa12358/newenglish/pkg/db/dbtest"
)

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, Run(conn))

	for _, table := range []string{"user_quotas", "speech_providers", "assessment_records", "authorization_codes", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestRunRejectsNil(t *testing.T) {
	assert.Error(t, Run(nil))
	assert.Error(t, RunMigrations(nil))
}
