package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/config"
	"github.com/openlangarchive/langsearch/internal/events"
	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/logging"
	"github.com/openlangarchive/langsearch/internal/search"
	"github.com/openlangarchive/langsearch/internal/storage"
	"github.com/openlangarchive/langsearch/internal/tasks"
	"github.com/openlangarchive/langsearch/internal/web"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	switch os.Args[1] {
	case "serve":
		runServe(cfg, log)
	case "rebuild":
		rebuildFlags := flag.NewFlagSet("rebuild", flag.ExitOnError)
		siteSlug := rebuildFlags.String("site", "", "Restrict the rebuild to one site by slug")
		rebuildFlags.Parse(os.Args[2:])
		runRebuild(cfg, log, rebuildFlags.Args(), *siteSlug)
	case "stats":
		runStats(cfg, log)
	case "visibility":
		visFlags := flag.NewFlagSet("visibility", flag.ExitOnError)
		siteSlug := visFlags.String("site", "", "Site slug to update")
		level := visFlags.String("level", "", "New visibility: team, members, or public")
		visFlags.Parse(os.Args[2:])
		runVisibility(cfg, log, *siteSlug, *level)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("langsearch - search indexing and querying for language archive sites")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  langsearch <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                         Start the HTTP search API")
	fmt.Println("  rebuild [flags] [index...]    Rebuild indices from the database")
	fmt.Println("  stats                         Show document counts per index")
	fmt.Println("  visibility [flags]            Bulk-change a site's visibility")
	fmt.Println()
	fmt.Println("Rebuild Flags:")
	fmt.Println("  -site=<slug>   Restrict the rebuild to one site")
	fmt.Println()
	fmt.Println("Visibility Flags:")
	fmt.Println("  -site=<slug>                  Site to update")
	fmt.Println("  -level=<team|members|public>  New visibility for the site and its content")
	fmt.Println()
	fmt.Println("Configuration comes from LANGSEARCH_* environment variables:")
	fmt.Println("  LANGSEARCH_DATA_DIR (default ./data)")
	fmt.Println("  LANGSEARCH_BIND_ADDR (default localhost:8095)")
	fmt.Println("  LANGSEARCH_WORKERS (default 4)")
	fmt.Println("  LANGSEARCH_LOG_LEVEL (default info)")
}

func openStack(cfg *config.Config, log *zap.Logger) (*storage.DB, *index.Store, *index.Registry, error) {
	if err := os.MkdirAll(cfg.IndexPath(), 0o755); err != nil {
		return nil, nil, nil, err
	}
	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := index.OpenStore(cfg.IndexPath(), log)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return db, store, index.NewRegistry(db, store, log), nil
}

func runServe(cfg *config.Config, log *zap.Logger) {
	db, store, registry, err := openStack(cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer db.Close()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := tasks.NewQueue(registry, cfg.Workers, log)
	queue.Start(ctx)

	bus := events.NewBus()
	dispatcher := events.NewDispatcher(db, bus, queue, log)
	dispatcher.Connect()
	defer dispatcher.Disconnect()

	exec := search.NewExecutor(db, store, log)
	server := web.NewServer(db, store, exec, log)

	httpServer := &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.BindAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	queue.Stop()
}

// runRebuild rebuilds the named indices, or all of them when none are named.
// Unknown index names are skipped with a warning so a typo cannot wipe a
// healthy index.
func runRebuild(cfg *config.Config, log *zap.Logger, names []string, siteSlug string) {
	db, store, registry, err := openStack(cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer db.Close()
	defer store.Close()

	ctx := context.Background()

	if siteSlug != "" {
		site, err := db.GetSiteBySlug(siteSlug)
		if err != nil {
			log.Fatal("site lookup failed", zap.Error(err))
		}
		if site == nil {
			log.Fatal("site not found", zap.String("slug", siteSlug))
		}
		for _, tag := range []string{index.TagDictionaryEntry, index.TagSong, index.TagStory, index.TagMedia} {
			m, _ := registry.Get(tag)
			if err := m.RebuildSite(ctx, site.ID); err != nil {
				log.Fatal("site rebuild failed", zap.String("tag", tag), zap.Error(err))
			}
		}
		log.Info("site rebuilt", zap.String("slug", siteSlug))
		return
	}

	if len(names) == 0 {
		names = index.LogicalIndices
	}
	known := map[string]bool{}
	for _, n := range index.LogicalIndices {
		known[n] = true
	}
	for _, name := range names {
		if !known[name] {
			log.Warn("skipping unknown index", zap.String("index", name))
			continue
		}
		if err := registry.RebuildIndex(ctx, name); err != nil {
			log.Fatal("rebuild failed", zap.String("index", name), zap.Error(err))
		}
	}
}

// runVisibility moves a whole site to a new visibility level as one bulk job
// and drains the resulting re-index work before exiting.
func runVisibility(cfg *config.Config, log *zap.Logger, siteSlug, level string) {
	if siteSlug == "" || level == "" {
		fmt.Fprintln(os.Stderr, "visibility requires -site and -level")
		os.Exit(1)
	}
	vis, ok := storage.ParseVisibility(level)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown visibility level: %s\n", level)
		os.Exit(1)
	}

	db, store, registry, err := openStack(cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer db.Close()
	defer store.Close()

	site, err := db.GetSiteBySlug(siteSlug)
	if err != nil {
		log.Fatal("site lookup failed", zap.Error(err))
	}
	if site == nil {
		log.Fatal("site not found", zap.String("slug", siteSlug))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := tasks.NewQueue(registry, cfg.Workers, log)
	queue.Start(ctx)

	runner := tasks.NewVisibilityJobRunner(db, queue, log)
	job, err := runner.Run(ctx, site.ID, vis)
	if err != nil {
		log.Fatal("bulk visibility job failed", zap.Error(err))
	}
	if job.Status == storage.JobCancelled {
		fmt.Println(job.Message)
		return
	}
	queue.Stop()
	fmt.Printf("Site %s is now %s\n", siteSlug, level)
}

func runStats(cfg *config.Config, log *zap.Logger) {
	db, store, _, err := openStack(cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer db.Close()
	defer store.Close()

	for _, name := range index.LogicalIndices {
		n, err := store.DocCount(name)
		if err != nil {
			log.Fatal("doc count failed", zap.String("index", name), zap.Error(err))
		}
		fmt.Printf("%-20s %d documents\n", name, n)
	}
}
