package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source used for assessment timing and code expiry.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

func New() Clock {
	return RealClock{}
}

var Module = fx.Module("clock",
	fx.Provide(New),
)
