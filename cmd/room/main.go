package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"escaperoom.ai/internal/config"
	"escaperoom.ai/internal/gateway"
	"escaperoom.ai/internal/persistence/indexdb"
	"escaperoom.ai/internal/persistence/journal"
	"escaperoom.ai/internal/room"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to room.yaml (optional)")
		nodeURL    = flag.String("node", "", "world node websocket url (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "disable the dispatch journal and sqlite index")
		turns      = flag.Uint64("turns", 0, "turns granted by initialise (overrides config)")
		skipSetup  = flag.Bool("skip_setup", false, "do not spawn objects or initialise; resume an existing game")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[room] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "node":
			cfg.NodeURL = strings.TrimSpace(*nodeURL)
		case "data":
			cfg.DataDir = strings.TrimSpace(*dataDir)
		case "disable_db":
			cfg.DisableDB = *disableDB
		case "turns":
			cfg.InitialTurns = *turns
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	player, _ := cfg.Account()
	actions, _ := cfg.Actions()
	chainID, _ := cfg.Chain()

	acct, err := gateway.NewAccount(player, chainID, cfg.AccountSecret)
	if err != nil {
		logger.Fatalf("account: %v", err)
	}
	client, err := gateway.NewClient(gateway.ClientConfig{
		URL:            cfg.NodeURL,
		Account:        acct,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("gateway: %v", err)
	}
	client.Start()
	defer client.Close()

	var recorders room.Recorders
	if !cfg.DisableDB {
		j := journal.NewDispatchJournal(cfg.DataDir, logger)
		defer j.Close()
		idx, err := indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "dispatch.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer func() {
			st := idx.Stats()
			logger.Printf("index written=%d dropped=%d failed=%d", st.WrittenTotal, st.DroppedTotal, st.FailedTotal)
			_ = idx.Close()
		}()
		recorders = append(recorders, j, idx)
	}

	opts := room.Options{
		Player:          player,
		Actions:         actions,
		SyncInterval:    cfg.SyncInterval,
		SettleDelay:     cfg.SettleDelay,
		ChannelCapacity: cfg.ChannelCapacity,
		Logger:          logger,
	}
	if len(recorders) > 0 {
		opts.Recorder = recorders
	}
	for _, o := range cfg.Objects {
		opts.Catalog = append(opts.Catalog, room.Object{Name: o.Name, Description: o.Description})
	}
	bridge, err := room.NewBridge(client, opts)
	if err != nil {
		logger.Fatalf("bridge: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge.Start(ctx)
	if !*skipSetup {
		if err := bridge.Setup(cfg.InitialTurns); err != nil {
			logger.Fatalf("setup: %v", err)
		}
	}
	logger.Printf("ready node=%s player=%s turns=%d; type: interact <object> | escape <secret> | inspect <object> | status | quit",
		cfg.NodeURL, player.Hex(), cfg.InitialTurns)

	inputs := make(chan room.Input, 16)
	go readInputs(os.Stdin, inputs, logger)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		err := bridge.Run(gctx, cfg.FrameRateHz, inputs)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				st := client.Status()
				if !st.Connected {
					logger.Printf("node disconnected url=%s last_err=%s", st.URL, st.LastError)
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		logger.Printf("frame loop: %v", err)
	}

	bridge.Close()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := bridge.Wait(waitCtx); err != nil {
		logger.Printf("dispatch loops still busy at exit: %v", err)
	}
	logger.Printf("bye")
}

// readInputs feeds parsed stdin lines to the frame loop and closes out at EOF.
func readInputs(r io.Reader, out chan<- room.Input, logger *log.Logger) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		in, err := room.ParseInput(line)
		if err != nil {
			logger.Printf("input: %v", err)
			continue
		}
		out <- in
		if in.Action == room.ActionQuit {
			return
		}
	}
}
