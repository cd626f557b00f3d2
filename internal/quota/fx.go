package quota

import (
	"github.com/tkwa12358/newenglish/internal/quota/repository"
	"github.com/tkwa12358/newenglish/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
