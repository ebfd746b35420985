package main

import (
	"context"
	"flag"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"greyd/internal/config"
	"greyd/internal/logging"
	"greyd/internal/store"
	"greyd/internal/sweep"
	"greyd/internal/whitelist"
)

type setFlags []string

func (s *setFlags) String() string { return "" }

func (s *setFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	greyDB := flag.String("grey-db", "", "greylist store locator (overrides config)")
	awlDB := flag.String("awl-db", "", "auto-whitelist store locator (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	var sets setFlags
	flag.Var(&sets, "set", "inject a config value as section.key=value (repeatable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("config", err)
	}

	// CLI flags override config file values; -set overrides both.
	if *greyDB != "" {
		cfg.Service.GreyDB = *greyDB
	}
	if *awlDB != "" {
		cfg.Service.AWLDB = *awlDB
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	for _, assignment := range sets {
		if err := cfg.Set(assignment); err != nil {
			fatal("config", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		fatal("config", err)
	}

	logging.Init(cfg.Log.Level, cfg.Log.Format)
	log := logging.For("greyd")

	greyStore, err := store.Open(config.ExpandHome(cfg.Service.GreyDB))
	if err != nil {
		fatal("greylist store", err)
	}
	awlStore, err := store.Open(config.ExpandHome(cfg.Service.AWLDB))
	if err != nil {
		fatal("auto-whitelist store", err)
	}

	for _, source := range cfg.Service.WLSources {
		lists, err := whitelist.Load(source, cfg.Service.AllowWLRegex)
		if err != nil {
			fatal("whitelist source", err)
		}
		n, err := whitelist.Import(awlStore, lists)
		if err != nil {
			fatal("whitelist import", err)
		}
		log.Info("loaded whitelist source", "source", source, "entries", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(cfg.Service.MaintenanceInterval) * time.Second
	var wg sync.WaitGroup
	if !cfg.Service.GreyDBMaintenanceDisable {
		sw := &sweep.Sweeper{
			Store:    greyStore,
			Name:     "greylist",
			MaxAge:   time.Duration(cfg.Service.GreyMaxAge) * time.Second,
			Interval: interval,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sw.Run(ctx)
		}()
	}
	if !cfg.Service.AWLDBMaintenanceDisable {
		sw := &sweep.Sweeper{
			Store:    awlStore,
			Name:     "auto-whitelist",
			MaxAge:   time.Duration(cfg.Service.AWLMaxAge) * time.Second,
			Interval: interval,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sw.Run(ctx)
		}()
	}

	log.Info("greyd started",
		"grey_db", redact(cfg.Service.GreyDB), "awl_db", redact(cfg.Service.AWLDB),
		"hash_grey_db", cfg.Service.HashGreyDB)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	wg.Wait()

	if err := greyStore.Save(); err != nil {
		log.Error("final save of greylist store failed", "error", err)
	}
	if err := awlStore.Save(); err != nil {
		log.Error("final save of auto-whitelist store failed", "error", err)
	}
}

func fatal(what string, err error) {
	slog.Error(what, "error", err)
	os.Exit(1)
}

// redact masks the credential portion of a locator before it reaches a log.
func redact(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return locator
	}
	return u.Redacted()
}
