package cmd

import (
	"fmt"

	"github.com/liableapp/liable/internal/app"
	"github.com/liableapp/liable/internal/config"
	"github.com/liableapp/liable/internal/logger"
)

func loadConfig() *config.Config {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)
	return cfg
}

// withApp builds the full application (migrating SQL stores) and closes it,
// draining queued email, when fn returns.
func withApp(fn func(a *app.App) error) (err error) {
	a, err := app.New(loadConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		closeErr := a.Close()
		if err == nil {
			err = closeErr
		}
	}()

	return fn(a)
}
