package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	configFile := flag.String("config", "clientconfig.json", "Path to configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout belongs to the TUI
	f, err := tea.LogToFile(cfg.LogFile, "housechat")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Client stopped with an error", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Alas, there's been an error: %v\n", err)
		f.Close()
		os.Exit(1)
	}
}

func run(cfg *Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	events := make(chan Event, 64)
	actions := make(chan Action, 16)

	network := NewNetwork(events, actions, NetworkOptions{
		Probe:       cfg.Probe(),
		DialTimeout: cfg.DialTimeout,
		Logger:      logger.With(slog.String("component", "network")),
	})
	go network.Run(ctx)

	ui := NewUI(events, tea.WithAltScreen(), tea.WithContext(ctx))
	mux := NewMultiplexer(events, actions, cfg.Tick, ui, logger.With(slog.String("component", "mux")))

	muxErr := make(chan error, 1)
	go func() {
		_, err := mux.Run(ctx, NewUIState(cfg.MaxChats))
		muxErr <- err
		ui.Quit()
	}()

	uiErr := ui.Run()
	stop()
	err := <-muxErr
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
