package authcode

import (
	"github.com/tkwa12358/newenglish/internal/authcode/repository"
	"github.com/tkwa12358/newenglish/internal/authcode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("authcode.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
