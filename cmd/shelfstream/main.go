package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shelfstream/shelfstream/internal/api"
	"github.com/shelfstream/shelfstream/internal/artwork"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/database"
	"github.com/shelfstream/shelfstream/internal/emby"
	"github.com/shelfstream/shelfstream/internal/filescan"
	"github.com/shelfstream/shelfstream/internal/jobs"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/nfo"
	"github.com/shelfstream/shelfstream/internal/organizer"
	"github.com/shelfstream/shelfstream/internal/parser"
	"github.com/shelfstream/shelfstream/internal/progress"
	"github.com/shelfstream/shelfstream/internal/scheduler"
	"github.com/shelfstream/shelfstream/internal/scraper"
	"github.com/shelfstream/shelfstream/internal/subtitle"
	"github.com/shelfstream/shelfstream/internal/tmdb"
)

func main() {
	// .env is optional, used in development
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	log.Info().Str("logLevel", cfg.Logging.Level).Msg("starting ShelfStream")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	settings, err := config.NewStore(db.Conn(), cfg.Settings, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load settings")
	}

	parserService := parser.NewService(log.Logger)
	tmdbClient := tmdb.NewClient(settings, log.Logger)
	organizerService := organizer.NewService(log.Logger)
	scraperService := scraper.NewService(
		parserService,
		tmdbClient,
		nfo.NewWriter(log.Logger),
		organizerService,
		subtitle.NewService(organizerService, log.Logger),
		artwork.NewDownloader(tmdbClient, log.Logger),
		emby.NewClient(settings, log.Logger),
		log.Logger,
	)

	hub := progress.NewHub(log.Logger)
	jobStore := jobs.NewStore(db.Conn(), log.Logger)
	worker := jobs.NewWorker(jobStore, filescan.NewService(log.Logger), scraperService, settings, hub, log.Logger)

	// Requeue jobs that were pending when the previous process stopped.
	if pending, err := jobStore.List(jobs.StatusPending, 0); err == nil {
		for _, job := range pending {
			worker.Enqueue(job.ID)
		}
		if len(pending) > 0 {
			log.Info().Int("count", len(pending)).Msg("requeued pending jobs")
		}
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	retention := scheduler.JobRetentionTask(jobStore, func() int {
		return settings.Get().Jobs.RetentionDays
	}, log.Logger)
	if err := sched.Register(retention); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule retention sweep")
	}
	sched.Start()
	defer func() { _ = sched.Stop() }()

	server := api.NewServer(settings, parserService, scraperService, tmdbClient, jobStore, worker, hub, log.Logger)

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
