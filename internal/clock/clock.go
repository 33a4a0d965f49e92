package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock returns the current time. Every deadline comparison in the
// fiscal pipeline goes through it so tests can pin arbitrary dates.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
