package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/feescan/internal/core/config"
	"github.com/vietddude/feescan/internal/core/progress"
	redisclient "github.com/vietddude/feescan/internal/infra/redis"
	"github.com/vietddude/feescan/internal/infra/rpc"
	"github.com/vietddude/feescan/internal/infra/storage"
	"github.com/vietddude/feescan/internal/infra/storage/memory"
	"github.com/vietddude/feescan/internal/infra/storage/postgres"
	"github.com/vietddude/feescan/internal/scanning/health"
	"github.com/vietddude/feescan/internal/scanning/rescan"
	"github.com/vietddude/feescan/internal/scanning/retry"
	"github.com/vietddude/feescan/internal/scanning/scanner"
	"github.com/vietddude/feescan/internal/scanning/source"
)

// Service wires the storage, sources and scanners together and manages
// their lifecycle.
type Service struct {
	cfg           Config
	scanners      map[string]*scanner.Scanner
	rescanWorkers map[string]*rescan.Worker
	healthServer  *health.Server
	db            *postgres.DB
	redisClient   *redisclient.Client
	log           *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port          int
	Sources       []config.SourceConfig
	Redis         redisclient.Config
	Database      postgres.Config
	RescanEnabled bool // CLI flag
}

// NewService creates a Service with all dependencies initialized.
func NewService(cfg Config) (*Service, error) {
	// 1. Initialize Storage
	var progressRepo storage.ProgressRepository
	var eventRepo storage.FeeEventRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}

		progressRepo = postgres.NewProgressRepo(db)
		eventRepo = postgres.NewEventRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStorage()
		progressRepo = memory.NewProgressRepo(store)
		eventRepo = memory.NewEventRepo(store)
		slog.Info("Using Memory storage")
	}

	progressMgr := progress.NewManager(progressRepo)

	// 2. Initialize the failed-range queue (optional)
	var redisClient *redisclient.Client
	var queue storage.FailedRangeQueue
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, failed-range queue disabled", "error", err)
		} else {
			queue = redisClient
		}
	}

	// 3. Build one scanner per source
	scanners := make(map[string]*scanner.Scanner)
	rescanWorkers := make(map[string]*rescan.Worker)
	sourceIDs := make([]string, 0, len(cfg.Sources))

	for _, srcCfg := range cfg.Sources {
		client := rpc.NewClient(srcCfg.Provider.Name, srcCfg.Provider.URL, srcCfg.Provider.Timeout)

		feed := source.NewFeedSource(source.Config{
			SourceID:        srcCfg.ID,
			ContractAddress: srcCfg.ContractAddress,
			EventTopic:      srcCfg.EventTopic,
			Retry: retry.Strategy{
				MaxRetries:  srcCfg.Retry.MaxRetries,
				BaseDelay:   srcCfg.Retry.BaseDelay,
				MaxDelay:    srcCfg.Retry.MaxDelay,
				Exponential: true,
			},
		}, client)

		scanners[srcCfg.ID] = scanner.New(scanner.Config{
			SourceID:            srcCfg.ID,
			FloorHeight:         srcCfg.FloorHeight,
			BatchSize:           srcCfg.BatchSize,
			MaintenanceInterval: srcCfg.MaintenanceInterval,
			CatchUpPacing:       srcCfg.CatchUpPacing,
			Source:              feed,
			Progress:            progressMgr,
			Events:              eventRepo,
			FailedRanges:        queue,
		})
		sourceIDs = append(sourceIDs, srcCfg.ID)

		if queue != nil && cfg.RescanEnabled {
			rescanWorkers[srcCfg.ID] = rescan.NewWorker(rescan.DefaultConfig(), feed, queue, eventRepo)
			slog.Info("Rescan worker initialized", "source", srcCfg.ID)
		}
	}

	// 4. Health monitor and server
	healthMon := health.NewMonitor(sourceIDs, progressMgr, queue)
	var pinger health.Pinger
	if db != nil {
		pinger = db
	}
	healthServer := health.NewServer(healthMon, pinger, cfg.Port)

	return &Service{
		cfg:           cfg,
		scanners:      scanners,
		rescanWorkers: rescanWorkers,
		healthServer:  healthServer,
		db:            db,
		redisClient:   redisClient,
		log:           slog.Default(),
	}, nil
}

// Start starts the service and all its components.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	for id, sc := range s.scanners {
		s.log.Info("Starting scanner", "source", id)
		go func(id string, sc *scanner.Scanner) {
			if err := sc.Run(ctx); err != nil {
				s.log.Error("Scanner failed", "source", id, "error", err)
			}
		}(id, sc)
	}

	for id, w := range s.rescanWorkers {
		s.log.Info("Starting rescan worker", "source", id)
		go func(id string, w *rescan.Worker) {
			if err := w.Run(ctx); err != nil {
				s.log.Error("Rescan worker failed", "source", id, "error", err)
			}
		}(id, w)
	}

	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	for _, sc := range s.scanners {
		_ = sc.Stop()
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if s.db != nil {
		defer s.db.Close()
	}

	return s.healthServer.Stop(ctx)
}
