package logger

import (
	"go.uber.org/zap"
)

// New builds the process-wide zap logger. Development mode gets the console
// encoder, everything else the production JSON config.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
