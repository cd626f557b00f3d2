package speechprovider

import (
	"github.com/tkwa12358/newenglish/internal/speechprovider/repository"
	"github.com/tkwa12358/newenglish/internal/speechprovider/service"
	"go.uber.org/fx"
)

var Module = fx.Module("speechprovider.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
