// Command clinicdesk is the terminal client for the clinic notification
// service.
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/app"
	"github.com/nhle/clinicdesk/internal/auth"
	"github.com/nhle/clinicdesk/internal/credential"
	"github.com/nhle/clinicdesk/internal/logging"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "clinicdesk:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	writeConfig := pflag.Bool("write-config", false, "write the effective config to --config and exit")
	pflag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *writeConfig {
		if err := model.SaveConfig(*configPath, cfg); err != nil {
			return err
		}
		fmt.Println("wrote", *configPath)
		return nil
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tokens, err := credential.Open(cfg.Auth.TokenStore, model.ConfigDir())
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.API.BaseURL, tokens, cfg.API.RequestTimeout(), logger)
	authSvc := auth.NewService(client, cfg.API, logger)
	session := auth.NewSession(authSvc, tokens, logger)
	defer session.Dispose()
	client.OnUnauthorized(func() {
		session.ForceLogout(auth.ReasonUnauthorized)
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.RequestTimeout())
	err = session.Init(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	logger.Info("starting clinicdesk",
		zap.String("api", cfg.API.BaseURL),
		zap.Bool("restored", session.Authenticated()),
	)

	root := app.New(app.Deps{
		Config:  cfg,
		Session: session,
		Auth:    authSvc,
		Notify:  notify.NewService(client, cfg.API.SendConcurrency, logger),
		Logger:  logger,
	})

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		logger.Error("program exited with error", zap.Error(err))
		return err
	}
	return nil
}
