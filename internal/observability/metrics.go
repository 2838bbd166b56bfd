package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// InteractionToggles counts like/bookmark/follow toggles by kind and resulting state.
	InteractionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptguy_interaction_toggles_total",
		Help: "Total number of interaction toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// FeedRequests counts feed requests by outcome (ok, not_modified, error).
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptguy_feed_requests_total",
		Help: "Total number of feed requests by result",
	}, []string{"result"})

	// PostViews counts recorded post views split by viewer kind.
	PostViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptguy_post_views_total",
		Help: "Total number of recorded post views",
	}, []string{"viewer"})

	// CounterRepairs counts denormalized counters corrected by reconciliation.
	CounterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptguy_counter_repairs_total",
		Help: "Total number of post counters corrected by reconciliation",
	}, []string{"counter"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promptguy_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

const queryStartKey = "promptguy:query_start"

// QueryMetricsPlugin is a gorm plugin recording per-statement latency into DatabaseQueryLatency.
type QueryMetricsPlugin struct{}

// Name implements gorm.Plugin.
func (QueryMetricsPlugin) Name() string { return "promptguy:query_metrics" }

// Initialize registers before/after callbacks for every statement kind.
func (QueryMetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("metrics:before_create", startTimer); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("metrics:after_create", observe("create")); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("metrics:before_query", startTimer); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("metrics:after_query", observe("select")); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("metrics:before_update", startTimer); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("metrics:after_update", observe("update")); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("metrics:before_delete", startTimer); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("metrics:after_delete", observe("delete")); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("metrics:before_raw", startTimer); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("metrics:after_raw", observe("raw"))
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		table := "unknown"
		if db.Statement != nil && db.Statement.Table != "" {
			table = db.Statement.Table
		}
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
