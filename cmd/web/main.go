// Command web serves the rejection analysis HTTP API.
package main

import (
	"flag"
	"log/slog"
	"os"

	"rejectcli/internal/app"
	"rejectcli/internal/config"
	"rejectcli/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(contracts.GetFullVersionString() + "\n")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg, app.Options{})
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		application.Logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
