package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "chatwidget",
		Short:        "A minimal chat widget and the backend it talks to",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "",
		"path to config.yaml (default <user config dir>/chatwidget/config.yaml)")

	root.AddCommand(newServeCmd(&cfgPath), newTUICmd(&cfgPath))
	return root
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
