package main

import (
	"log/slog"
	"os"

	"udisecli/internal/app"
	"udisecli/pkg/contracts"
)

func main() {
	slog.Info(contracts.GetFullVersionString())

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
