package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"escaperoom.ai/internal/config"
	"escaperoom.ai/internal/devnode"
	"escaperoom.ai/internal/felt"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to devnode.yaml (optional)")
		listen     = flag.String("listen", "", "http listen address (overrides config)")
		latency    = flag.Duration("latency", 0, "artificial delay per request (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[devnode] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.LoadNode(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = strings.TrimSpace(*listen)
		case "latency":
			cfg.Latency = *latency
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	chainID, _ := (config.Config{ChainID: cfg.ChainID}).Chain()
	actions, _ := (config.Config{ActionsAddress: cfg.ActionsAddress}).Actions()
	accounts := make(map[felt.Felt]string, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		addr, _ := felt.FromHex(a.Address)
		accounts[addr] = a.Secret
	}

	w, err := devnode.NewWorld(cfg.EscapeSecret)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	s, err := devnode.NewServer(devnode.Config{
		World:        w,
		ChainID:      chainID,
		Actions:      actions,
		Accounts:     accounts,
		Latency:      cfg.Latency,
		ReplayWindow: cfg.ReplayWindow,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatalf("server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s chain=%s actions=%s accounts=%d", cfg.Listen, cfg.ChainID, actions.Hex(), len(accounts))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}
