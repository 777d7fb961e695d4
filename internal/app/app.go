package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feedforge/activitylog/internal/adapters/entityloader"
	"github.com/feedforge/activitylog/internal/adapters/events"
	"github.com/feedforge/activitylog/internal/adapters/httpapi"
	"github.com/feedforge/activitylog/internal/adapters/memcache"
	sqliteadapter "github.com/feedforge/activitylog/internal/adapters/sqlite"
	"github.com/feedforge/activitylog/internal/adapters/sqlite/gormdb"
	"github.com/feedforge/activitylog/internal/core/ports"
	"github.com/feedforge/activitylog/internal/core/usecase"
	"github.com/feedforge/activitylog/migrations"
)

type Config struct {
	Addr          string
	DBPath        string
	RenderTTL     time.Duration
	SweepInterval time.Duration
	WebhookURL    string
	WebhookSecret string
	// MemoryRenderCache keeps rendered descriptions in process memory
	// instead of the sqlite-backed cache table.
	MemoryRenderCache bool
	// EntityTables maps entity types onto backing tables using
	// "type=table[:keycol[:namecol]]" entries, e.g. "user=users:id:full_name".
	EntityTables []string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormdb.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	entityStore := sqliteadapter.NewEntityStore(db)
	if err := registerEntityTables(entityStore, cfg.EntityTables); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	repo := sqliteadapter.NewActivityRepository(db)
	var cacheStore ports.RenderCacheStore = sqliteadapter.NewRenderCacheStore(db)
	if cfg.MemoryRenderCache {
		cacheStore = memcache.New()
	}

	renderer := usecase.NewRenderer(entityloader.New(entityStore))
	renders := usecase.NewCachedRenderer(renderer, cacheStore, cfg.RenderTTL)

	var publisher ports.EventPublisher
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	} else {
		publisher = events.NewLogPublisher()
	}

	service := usecase.NewActivityService(repo, renders, publisher)

	sweeper := usecase.NewCacheSweeper(cacheStore, cfg.SweepInterval)
	sweeper.Start(context.Background())

	handler := httpapi.NewHandler(service)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{sweeper, db}}, nil
}

func registerEntityTables(store *sqliteadapter.EntityStore, entries []string) error {
	for _, entry := range entries {
		entityType, rest, ok := strings.Cut(entry, "=")
		if !ok || entityType == "" || rest == "" {
			return fmt.Errorf("invalid entity table mapping %q", entry)
		}
		parts := strings.SplitN(rest, ":", 3)
		spec := sqliteadapter.TableSpec{Table: parts[0]}
		if len(parts) > 1 {
			spec.KeyColumn = parts[1]
		}
		if len(parts) > 2 {
			spec.DisplayNameColumn = parts[2]
		}
		if spec.Table == "" {
			return fmt.Errorf("invalid entity table mapping %q", entry)
		}
		store.Register(entityType, spec)
	}
	return nil
}
