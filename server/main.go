package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kitten-arena/server/audit"
	"kitten-arena/server/engine"
	"kitten-arena/server/llm"
	"kitten-arena/server/realtime"
	"kitten-arena/server/store"
)

type mode int

const (
	modeServe mode = iota
	modeMigrate
	modeSelfPlay
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	lg, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	useColor = (os.Getenv("NO_COLOR") == "") && (strings.TrimSpace(os.Getenv("USE_COLOR")) != "0")

	m := modeServe
	for _, a := range os.Args[1:] {
		switch a {
		case "--migrate":
			m = modeMigrate
		case "--selfplay":
			m = modeSelfPlay
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go watchSignals(cancel)
	stop := cancel
	if cfg.MaxSeconds > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(cfg.MaxSeconds)*time.Second)
		stop = func() { tcancel(); cancel() }
	}

	err = run(ctx, cfg, lg, m)
	stop()
	if err != nil {
		lg.Error("exiting", zap.Error(err))
	}
	_ = lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run owns every resource it opens, so all of them are released before it returns.
func run(ctx context.Context, cfg Config, lg *zap.Logger, m mode) error {
	if m == modeMigrate {
		if err := runMigrate(ctx, cfg); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		lg.Info("migrated")
		return nil
	}

	cat, err := cfg.catalog()
	if err != nil {
		return fmt.Errorf("load catalog %s: %w", cfg.CatalogFile, err)
	}

	rec, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer rec.Close(context.Background())
	if cfg.DatabaseURL == "" {
		lg.Warn("DATABASE_URL not set, game log is kept in memory only")
	}
	if db, ok := rec.(*store.DB); ok && cfg.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		lg.Info("migrated")
	}

	journal := audit.New(audit.Options{Recorder: rec, Buffer: cfg.AuditBuffer, Logger: lg})
	jctx, jcancel := context.WithCancel(context.Background())
	jdone := make(chan struct{})
	go func() { journal.Start(jctx); close(jdone) }()
	var stopOnce sync.Once
	stopJournal := func() {
		stopOnce.Do(func() {
			jcancel()
			<-jdone
			if d, f := journal.Dropped(), journal.Failed(); d > 0 || f > 0 {
				lg.Warn("journal lost events", zap.Int64("dropped", d), zap.Int64("failed", f))
			}
		})
	}
	// runs before rec.Close, so queued events still reach the store
	defer stopJournal()

	reg := engine.NewRegistry(engine.RegistryOptions{
		Catalog: cat,
		Seed:    cfg.seedSource(),
		Journal: journal,
		Logger:  lg.Named("registry"),
	})

	if m == modeSelfPlay {
		var model *llm.Policy
		if cfg.wantsLLM() {
			if model, err = llm.Register(cfg.LLMModel, lg); err != nil {
				return fmt.Errorf("llm policy: %w", err)
			}
		}
		rng := engine.NewRand(cfg.DeckSeed)
		st, err := runSelfPlay(ctx, cfg, reg, rng, lg)
		stopJournal()
		if st != nil && len(st.Turns) > 0 {
			printReport(st, rand.New(rand.NewSource(rng.Int63())))
		}
		if model != nil {
			calls, fallbacks := model.Stats()
			fmt.Printf("%s model moves %d  fallbacks %s\n", dim("•"), calls, warn(fmt.Sprint(fallbacks)))
		}
		if err != nil && !errors.Is(err, errStopped) {
			return fmt.Errorf("self-play: %w", err)
		}
		return nil
	}

	hub := realtime.NewHub(realtime.Options{
		Origins: cfg.Origins,
		Logger:  lg,
		Lookup: func(lobby string) (engine.Snapshot, error) {
			s, err := reg.Get(lobby)
			if err != nil {
				return engine.Snapshot{}, err
			}
			return s.Snapshot(), nil
		},
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     Router(&App{Registry: reg, Recorder: rec, Hub: hub, Log: lg.Named("http")}),
		ReadTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer scancel()
		for _, lobby := range reg.Lobbies() {
			hub.CloseLobby(lobby)
		}
		_ = srv.Shutdown(sctx)
	}()

	lg.Info("listening", zap.String("addr", "http://localhost:"+cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func runMigrate(ctx context.Context, cfg Config) error {
	switch {
	case strings.HasPrefix(cfg.DatabaseURL, "postgres://"), strings.HasPrefix(cfg.DatabaseURL, "postgresql://"):
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close(context.Background())
		return store.Migrate(ctx, db)
	case cfg.DatabaseURL == "":
		return errors.New("DATABASE_URL is required for --migrate")
	}
	// SQLite migrates itself on open.
	rec, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	return rec.Close(context.Background())
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	cancel()
}
