package providers

import (
	"github.com/tkwa12358/newenglish/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
)
