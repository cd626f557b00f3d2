package auth

import (
	"github.com/tkwa12358/newenglish/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(service.New),
)
