package service

import (
	"context"
	"sync"
	"time"

	"github.com/25x8/bonus-approvals/internal/metrics"
	"github.com/25x8/bonus-approvals/internal/repository"
	"go.uber.org/zap"
)

// BacklogMonitor keeps the pending_claims gauge in step with the claim store.
type BacklogMonitor struct {
	repo     repository.Queries
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewBacklogMonitor(repo repository.Queries, interval time.Duration, log *zap.Logger) *BacklogMonitor {
	return &BacklogMonitor{
		repo:     repo,
		log:      log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (m *BacklogMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.processLoop()
	}()
}

func (m *BacklogMonitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *BacklogMonitor) processLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refreshLogged()
	for {
		select {
		case <-ticker.C:
			m.refreshLogged()
		case <-m.stopCh:
			return
		}
	}
}

func (m *BacklogMonitor) refreshLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	if err := m.Refresh(ctx); err != nil {
		m.log.Warn("refresh pending claims gauge", zap.Error(err))
	}
}

func (m *BacklogMonitor) Refresh(ctx context.Context) error {
	counts, err := m.repo.CountPendingClaims(ctx)
	if err != nil {
		return err
	}
	for pipeline, n := range counts {
		metrics.PendingClaims.WithLabelValues(pipeline).Set(float64(n))
	}
	return nil
}
