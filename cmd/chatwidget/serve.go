package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chatwidget "github.com/MegaGrindStone/chat-widget"
	"github.com/MegaGrindStone/chat-widget/internal/handlers"
	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat backend and the browser widget",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := cfg.LLM.llm(cfg.SystemPrompt, cfg.env, logger)
	if err != nil {
		return fmt.Errorf("error creating llm: %w", err)
	}

	storePath := cfg.StorePath
	if storePath == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		storePath = filepath.Join(dir, "store.db")
	}
	boltDB, err := services.NewBoltDB(storePath)
	if err != nil {
		return err
	}
	defer boltDB.Close()

	assistant := handlers.NewAssistant(llm, boltDB, cfg.HistoryLimit, logger)

	client := services.NewChatClient(cfg.BackendURL, nil, logger)
	wg, err := handlers.NewWidget(client, handlers.WidgetOptions{
		Markdown:        cfg.Markdown,
		ExchangeTimeout: cfg.ExchangeTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("error creating widget: %w", err)
	}

	// Serve static files
	staticFS, err := fs.Sub(chatwidget.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", wg.HandleHome)
	mux.HandleFunc("/widget/messages", wg.HandleSubmit)
	mux.HandleFunc("/widget/clear", wg.HandleClear)
	mux.HandleFunc("/widget/events", wg.HandleSSE)
	mux.HandleFunc("/chat", assistant.HandleChat)
	mux.HandleFunc("/chat/reset", assistant.HandleReset)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := wg.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", slog.String("addr", srv.Addr), slog.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return wg.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				return fmt.Errorf("forcing server close: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}
