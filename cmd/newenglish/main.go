package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/migration"
	"github.com/tkwa12358/newenglish/internal/observability"
	"github.com/tkwa12358/newenglish/internal/server"
	"github.com/tkwa12358/newenglish/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and every domain module behind it
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
