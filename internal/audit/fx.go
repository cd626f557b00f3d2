package audit

import (
	"github.com/tkwa12358/newenglish/internal/audit/repository"
	"github.com/tkwa12358/newenglish/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
