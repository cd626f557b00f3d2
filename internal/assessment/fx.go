package assessment

import (
	"github.com/tkwa12358/newenglish/internal/assessment/adapters"
	"github.com/tkwa12358/newenglish/internal/assessment/repository"
	"github.com/tkwa12358/newenglish/internal/assessment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assessment.service",
	adapters.Module,
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
