package service

import (
	"context"
	"log/slog"

	"promptguy/internal/cache"
	"promptguy/internal/middleware"
	"promptguy/internal/observability"
	"promptguy/internal/repository"
)

type CounterService struct {
	counterRepo repository.CounterRepository
	batchSize   int
}

func NewCounterService(counterRepo repository.CounterRepository) *CounterService {
	return &CounterService{counterRepo: counterRepo, batchSize: repository.DefaultReconcileBatch}
}

// ReconcileCounters recomputes the like, bookmark, share and view counters of
// postID, or of every post when postID is nil, from the relation and event rows.
func (s *CounterService) ReconcileCounters(ctx context.Context, postID *uint) (*repository.ReconcileResult, error) {
	var ids []uint
	if postID != nil {
		ids = []uint{*postID}
	}
	res, err := s.counterRepo.Reconcile(ctx, ids, s.batchSize)
	if err != nil {
		return nil, err
	}
	for _, id := range res.RepairedIDs {
		cache.InvalidatePost(ctx, id)
	}
	if res.Repaired > 0 {
		observability.CounterRepairs.WithLabelValues("post").Add(float64(res.Repaired))
	}
	middleware.Logger.InfoContext(ctx, "counter reconciliation finished",
		slog.Int("scanned", res.Scanned),
		slog.Int("repaired", res.Repaired),
	)
	return res, nil
}
