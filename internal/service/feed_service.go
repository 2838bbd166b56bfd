package service

import (
	"context"
	"fmt"
	"strings"

	"promptguy/internal/catalog"
	"promptguy/internal/models"
	"promptguy/internal/observability"
	"promptguy/internal/repository"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultFeedLimit    = 10
	defaultFeedMaxLimit = 50
)

// FeedQuery holds the raw feed request parameters.
type FeedQuery struct {
	ViewerID uint
	Page     int
	Limit    int
	SortBy   string
	Order    string
	Model    string
	Purpose  string
	Search   string
	UserOnly bool
	// Filter is a preset (latest, popular, trending) used when SortBy is empty.
	Filter string
}

// FeedResult is one feed page. When NotModified is set, Posts is nil and only
// ETag is meaningful.
type FeedResult struct {
	Posts       []*models.Post
	HasMore     bool
	ETag        string
	NotModified bool
}

type FeedService struct {
	postRepo        repository.PostRepository
	interactionRepo repository.InteractionRepository
	catalog         *catalog.Catalog
	defaultLimit    int
	maxLimit        int
}

func NewFeedService(
	postRepo repository.PostRepository,
	interactionRepo repository.InteractionRepository,
	cat *catalog.Catalog,
	defaultLimit, maxLimit int,
) *FeedService {
	if cat == nil {
		cat = catalog.Default()
	}
	if defaultLimit <= 0 {
		defaultLimit = defaultFeedLimit
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultFeedMaxLimit
	}
	return &FeedService{
		postRepo:        postRepo,
		interactionRepo: interactionRepo,
		catalog:         cat,
		defaultLimit:    defaultLimit,
		maxLimit:        maxLimit,
	}
}

// normalizedFeed is a FeedQuery after defaults and whitelisting.
type normalizedFeed struct {
	viewerID uint
	page     int
	limit    int
	sortBy   string
	desc     bool
	model    string
	purpose  string
	search   string
	userOnly bool
}

func (n normalizedFeed) filter() repository.FeedFilter {
	return repository.FeedFilter{
		ViewerID: n.viewerID,
		UserOnly: n.userOnly,
		Model:    n.model,
		Purpose:  n.purpose,
		Search:   n.search,
		SortBy:   n.sortBy,
		Desc:     n.desc,
		Limit:    n.limit,
		Offset:   (n.page - 1) * n.limit,
	}
}

func (s *FeedService) normalize(q FeedQuery) normalizedFeed {
	page, limit := normalizePage(q.Page, q.Limit, s.defaultLimit, s.maxLimit)

	sortBy := strings.TrimSpace(q.SortBy)
	if sortBy == "" {
		if preset, ok := s.catalog.PresetSort(q.Filter); ok {
			sortBy = preset
		}
	}
	if !s.catalog.IsSortField(sortBy) {
		sortBy = s.catalog.DefaultSort()
	}

	n := normalizedFeed{
		viewerID: q.ViewerID,
		page:     page,
		limit:    limit,
		sortBy:   sortBy,
		desc:     !strings.EqualFold(strings.TrimSpace(q.Order), "asc"),
		search:   strings.TrimSpace(q.Search),
		userOnly: q.UserOnly,
	}
	if !catalog.IsNoFilter(q.Model) {
		n.model = strings.TrimSpace(q.Model)
	}
	if !catalog.IsNoFilter(q.Purpose) {
		n.purpose = strings.TrimSpace(q.Purpose)
	}
	return n
}

// ListFeed computes the feed ETag from aggregate metadata and, unless
// ifNoneMatch matches it, loads the page with viewer flags.
func (s *FeedService) ListFeed(ctx context.Context, q FeedQuery, ifNoneMatch string) (*FeedResult, error) {
	if q.UserOnly && q.ViewerID == 0 {
		observability.FeedRequests.WithLabelValues("error").Inc()
		return nil, models.NewUnauthorizedError("Authentication required for userOnly feeds")
	}

	span, ctx := observability.NewSpan(ctx, "FeedService.ListFeed")
	defer span.End()

	n := s.normalize(q)
	span.AddAttributes(
		attribute.Int("feed.page", n.page),
		attribute.Int("feed.limit", n.limit),
		attribute.String("feed.sort", n.sortBy),
		attribute.Bool("feed.user_only", n.userOnly),
	)

	stats, err := s.postRepo.FeedFingerprint(ctx, n.filter())
	if err != nil {
		span.SetError(err)
		observability.FeedRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	etag := feedETag(n, stats)

	if ETagMatches(ifNoneMatch, etag) {
		observability.FeedRequests.WithLabelValues("304").Inc()
		return &FeedResult{ETag: etag, NotModified: true}, nil
	}

	posts, err := s.postRepo.ListFeed(ctx, n.filter())
	if err != nil {
		span.SetError(err)
		observability.FeedRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := applyViewerFlags(ctx, s.interactionRepo, n.viewerID, posts); err != nil {
		span.SetError(err)
		observability.FeedRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	observability.FeedRequests.WithLabelValues("200").Inc()
	return &FeedResult{
		Posts:   posts,
		HasMore: len(posts) == n.limit,
		ETag:    etag,
	}, nil
}

// feedETag hashes the normalized query and the aggregate state of the matching rows.
func feedETag(n normalizedFeed, stats *repository.FeedStats) string {
	h := xxhash.New()
	fmt.Fprintf(h, "v2|%d|%s|%s|%d|%d|%d|%d|%d|%s|%t|%s|%s|%s|%t|%d",
		stats.Count, stats.MaxUpdatedAt, stats.MaxAuthorUpdatedAt, stats.LikesTotal, stats.BookmarksTotal, stats.ViewsTotal,
		n.page, n.limit, n.sortBy, n.desc, n.model, n.purpose, n.search, n.userOnly, n.viewerID)
	return fmt.Sprintf(`W/"%016x"`, h.Sum64())
}

// ETagMatches applies weak comparison of an If-None-Match header against etag.
func ETagMatches(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

// normalizePage applies 1-indexed page and bounded limit defaults.
func normalizePage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
