package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/vendor-spend/config"
)

// New creates the root structured logger for a process. The component name
// distinguishes the api, worker and cli processes in aggregated logs.
func New(cfg *config.Config, component string) zerolog.Logger {
	return newLogger(os.Stdout, cfg.ServiceName, component, cfg.LogLevel)
}

func newLogger(w io.Writer, service, component, level string) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()

	if service != "" {
		ctx = ctx.Str("service", service)
	}
	if component != "" {
		ctx = ctx.Str("component", component)
	}

	logger := ctx.Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return logger.Level(lvl)
}

// Bootstrap is used before configuration has been loaded.
func Bootstrap() zerolog.Logger {
	return newLogger(os.Stderr, "", "bootstrap", "info")
}
