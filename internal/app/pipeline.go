package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/audittrail/internal/config"
	"github.com/keyxmakerx/audittrail/internal/detectors"
	"github.com/keyxmakerx/audittrail/internal/diff"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/format"
	"github.com/keyxmakerx/audittrail/internal/lifecycle"
	"github.com/keyxmakerx/audittrail/internal/metrics"
	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
	"github.com/keyxmakerx/audittrail/internal/severity"
	"github.com/keyxmakerx/audittrail/internal/snapshot"
)

// labelBatchWait is how long the label loader collects lookups before
// dispatching one batch per kind to the entity store.
const labelBatchWait = 2 * time.Millisecond

// Pipeline is the wired audit pipeline. The HTTP server and the CLI share
// it.
type Pipeline struct {
	Audit       audit.AuditService
	Coordinator *lifecycle.Coordinator
	Snapshots   snapshot.Store

	// Entities is the host's entity store, or nil when every notification
	// pushes its own state.
	Entities entitystore.Store

	snapshotTTL   time.Duration
	sweepInterval time.Duration
}

// NewPipeline builds the pipeline from configuration. recorder overrides
// where assembled records go; nil stores them through the audit service.
// rdb may be nil unless the redis snapshot backend is selected.
func NewPipeline(cfg *config.Config, db *sql.DB, rdb *redis.Client, recorder lifecycle.Recorder) (*Pipeline, error) {
	repo := audit.NewAuditRepository(db)
	service := audit.NewAuditService(repo)
	if recorder == nil {
		recorder = service
	}

	var snapshots snapshot.Store
	switch cfg.Snapshot.Backend {
	case config.SnapshotRedis:
		if rdb == nil {
			return nil, errors.New("snapshot backend redis requires REDIS_URL")
		}
		snapshots = snapshot.NewRedisStore(rdb, cfg.Snapshot.TTL)
	default:
		snapshots = snapshot.NewMemoryStore()
	}

	var base entitystore.Store
	if cfg.EntityStore.URL != "" {
		base = entitystore.NewHTTPStore(cfg.EntityStore.URL, cfg.EntityStore.Timeout, cfg.EntityStore.Token)
	} else {
		slog.Info("no entity store configured; notifications must push entity state")
	}
	scoped := entitystore.NewScoped(base)

	formatter := format.New(
		format.NewLoaderResolver(format.NewStoreResolver(scoped), labelBatchWait),
		format.WithMaxLength(cfg.Audit.TextMaxLength),
		format.WithCurrency(cfg.Audit.Currency),
	)

	registry := detectors.NewRegistry(detectors.Deps{
		Snapshots: snapshots,
		Entities:  scoped,
		Engine:    diff.NewEngine(formatter),
	})

	classifier := severity.NewClassifier(repo,
		severity.WithBruteForce(cfg.Audit.BruteForceThreshold, cfg.Audit.BruteForceWindow),
	)

	return &Pipeline{
		Audit:         service,
		Coordinator:   lifecycle.NewCoordinator(registry, classifier, recorder, base),
		Snapshots:     snapshots,
		Entities:      base,
		snapshotTTL:   cfg.Snapshot.TTL,
		sweepInterval: cfg.Snapshot.SweepInterval,
	}, nil
}

// RunSweeper evicts snapshots that were captured but never consumed, until
// ctx is cancelled. The Redis backend expires keys itself, so its Expire is
// a no-op.
func (p *Pipeline) RunSweeper(ctx context.Context) {
	interval := p.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Snapshots.Expire(ctx, p.snapshotTTL)
			if err != nil {
				slog.Warn("snapshot sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				metrics.SnapshotsExpired(n)
				slog.Debug("expired stale snapshots", slog.Int("count", n))
			}
		}
	}
}
