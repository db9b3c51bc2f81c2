package main

import (
	"context"
	"path/filepath"

	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/MegaGrindStone/chat-widget/internal/tui"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newTUICmd(cfgPath *string) *cobra.Command {
	var backendURL string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Chat with a backend from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if backendURL != "" {
				cfg.BackendURL = backendURL
			}
			return runTUI(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&backendURL, "backend", "", "URL of the chat endpoint (default from config)")

	return cmd
}

func runTUI(ctx context.Context, cfg config) error {
	logFile := cfg.LogFile
	if logFile == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		logFile = filepath.Join(dir, "tui.log")
	}
	// The terminal belongs to the UI, so diagnostics go to a rotated file.
	logWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
	}
	defer logWriter.Close()
	logger := newLogger(logWriter, cfg.LogLevel, cfg.LogFormat)

	surface := tui.NewSurface()
	client := services.NewChatClient(cfg.BackendURL, nil, logger)
	controller := widget.New(surface, client, logger, widget.WithExchangeTimeout(cfg.ExchangeTimeout))

	model, err := tui.New(controller, surface, tui.Options{
		Markdown: cfg.Markdown,
		Title:    "Chat · " + cfg.BackendURL,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, model)
	})

	return g.Wait()
}
