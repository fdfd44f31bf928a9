package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/app"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/config"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/infrastructure"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = application.Run(context.Background())
	if err != nil {
		application.Logger.Error("Application error", slog.String("error", err.Error()))
	}
	_ = infrastructure.CloseLogFile()
	if err != nil {
		os.Exit(1)
	}
}
