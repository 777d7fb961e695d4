package usecase

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/feedforge/activitylog/internal/core/ports"
)

// CacheSweeper periodically purges expired render-cache entries so lazy
// expiry in the backends never leaves dead rows behind.
type CacheSweeper struct {
	cache    ports.RenderCacheStore
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	purgedTotal atomic.Int64
	sweepErrors atomic.Int64
}

type CacheSweeperMetrics struct {
	PurgedTotal int64
	SweepErrors int64
}

func NewCacheSweeper(cache ports.RenderCacheStore, interval time.Duration) *CacheSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CacheSweeper{cache: cache, interval: interval}
}

func (s *CacheSweeper) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *CacheSweeper) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *CacheSweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil {
			log.Printf("render cache sweep error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one purge pass.
func (s *CacheSweeper) Sweep(ctx context.Context) error {
	purged, err := s.cache.PurgeExpired(ctx)
	if err != nil {
		s.sweepErrors.Add(1)
		return err
	}
	s.purgedTotal.Add(int64(purged))
	return nil
}

func (s *CacheSweeper) Metrics() CacheSweeperMetrics {
	return CacheSweeperMetrics{
		PurgedTotal: s.purgedTotal.Load(),
		SweepErrors: s.sweepErrors.Load(),
	}
}
