package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/puyokura/housechat/discovery"
)

const logName = "server.log"

func setupLogging(dir string) (*os.File, *slog.Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, err
	}

	logFile, err := os.OpenFile(filepath.Join(dir, logName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(multiWriter, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	return logFile, logger, nil
}

// compressLog archives the current log next to it and returns the archive path.
func compressLog(dir string) (string, error) {
	source := filepath.Join(dir, logName)
	timestamp := time.Now().Format("20060102-150405")
	target := filepath.Join(dir, fmt.Sprintf("logs-%s.tar.gz", timestamp))

	file, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat log: %w", err)
	}
	header, err := tar.FileInfoHeader(info, info.Name())
	if err != nil {
		return "", fmt.Errorf("tar header: %w", err)
	}
	header.Name = logName

	outFile, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)
	if err := tw.WriteHeader(header); err != nil {
		return "", fmt.Errorf("write tar header: %w", err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return "", fmt.Errorf("compress log: %w", err)
	}
	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gw.Close(); err != nil {
		return "", err
	}
	return target, nil
}

func main() {
	configFile := flag.String("config", "serverconfig.json", "Path to configuration file")
	flag.Parse()

	// config is read before logging is set up, so its warnings go to stderr
	cfg, err := LoadConfig(slog.Default(), *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logFile, logger, err := setupLogging(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	code := run(cfg, logger)

	logFile.Close()
	if target, err := compressLog(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to archive log: %v\n", err)
	} else {
		fmt.Printf("Log compressed to %s\n", target)
		os.Remove(filepath.Join(cfg.LogDir, logName))
	}
	os.Exit(code)
}

func run(cfg *Config, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proto := cfg.Protocol()

	listener, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		logger.Error("Failed to bind chat listener", slog.String("addr", cfg.TCPAddr), slog.Any("error", err))
		return 1
	}
	relayPort := listener.Addr().(*net.TCPAddr).Port

	responder, err := discovery.NewResponder(discovery.ResponderConfig{
		ListenAddr:    net.JoinHostPort("", strconv.Itoa(proto.DiscoveryPort)),
		Request:       proto.DiscoveryMessage,
		AdvertiseHost: cfg.AdvertiseHost,
		RelayPort:     relayPort,
	}, logger.With(slog.String("component", "discovery")))
	if err != nil {
		logger.Error("Failed to start discovery service", slog.Any("error", err))
		listener.Close()
		return 1
	}

	relay, err := NewRelay(listener, NewHub(cfg.BusCapacity), RelayOptions{
		Protocol:     proto,
		ServerAddr:   responder.Reply(),
		DrainTimeout: cfg.DrainTimeout,
		Accounts:     NewStore(cfg.BcryptCost),
		Logger:       logger.With(slog.String("component", "relay")),
	})
	if err != nil {
		logger.Error("Failed to create relay", slog.Any("error", err))
		return 1
	}

	var discoveryFailed atomic.Bool
	go func() {
		if err := responder.Serve(ctx); err != nil {
			logger.Error("Discovery service failed", slog.Any("error", err))
			discoveryFailed.Store(true)
			stop()
		}
	}()

	var web *http.Server
	if cfg.WebAddr != "" {
		web = &http.Server{
			Addr:        cfg.WebAddr,
			Handler:     NewWebHandler(ctx, relay, cfg.ServerName, logger.With(slog.String("component", "web"))),
			BaseContext: func(net.Listener) context.Context { return ctx },
		}
		go func() {
			logger.Info("Web gateway started", slog.String("addr", cfg.WebAddr))
			if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Web gateway failed", slog.Any("error", err))
			}
		}()
	}

	go runConsole(ctx, os.Stdin, os.Stdout, relay, stop)

	code := 0
	if err := relay.Serve(ctx); err != nil {
		logger.Error("Relay stopped", slog.Any("error", err))
		code = 1
	}
	if discoveryFailed.Load() {
		code = 1
	}

	if web != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		web.Shutdown(shutdownCtx)
		cancel()
	}
	logger.Info("Server stopped")
	return code
}
