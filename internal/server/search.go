package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/internal/search/cache"
	"github.com/packdex/search-platform/internal/search/query"
	"github.com/packdex/search-platform/pkg/config"
	"github.com/packdex/search-platform/pkg/errors"
	"github.com/packdex/search-platform/pkg/health"
	"github.com/packdex/search-platform/pkg/metrics"
	"github.com/packdex/search-platform/pkg/middleware"
)

// SearchAPI serves the read-side HTTP surface of one search replica.
type SearchAPI struct {
	cfg     config.SearchConfig
	index   *search.InMemoryIndex
	cache   *cache.ResultCache
	metrics *metrics.Metrics
	checker *health.Checker
}

func NewSearchAPI(cfg config.SearchConfig, index *search.InMemoryIndex, rc *cache.ResultCache, m *metrics.Metrics, checker *health.Checker) *SearchAPI {
	return &SearchAPI{
		cfg:     cfg,
		index:   index,
		cache:   rc,
		metrics: m,
		checker: checker,
	}
}

// Routes builds the replica's HTTP handler with the standard middleware
// chain applied.
func (s *SearchAPI) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/index-info", s.handleIndexInfo)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("GET /health/live", s.checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", s.checker.ReadyHandler())

	var h http.Handler = mux
	h = middleware.Timeout(10 * time.Second)(h)
	h = middleware.Metrics(s.metrics)(h)
	h = middleware.RequestID(h)
	return h
}

func (s *SearchAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.index.IsReady() {
		writeError(w, errors.New(errors.ErrIndexNotReady, http.StatusServiceUnavailable,
			"index is still loading"))
		return
	}
	q, err := s.parseSearchQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	res, hit, err := s.cache.GetOrCompute(r.Context(), q,
		func(ctx context.Context) (*search.PackageSearchResult, error) {
			return s.index.Search(ctx, q), nil
		})
	if err != nil {
		writeError(w, err)
		return
	}
	s.observeSearch(res, hit, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

func (s *SearchAPI) observeSearch(res *search.PackageSearchResult, hit bool, elapsed time.Duration) {
	resultType := "hit"
	if res.TotalCount == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	if hit {
		cacheStatus = "hit"
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	s.metrics.SearchResultsCount.Observe(float64(len(res.Packages)))
}

// parseSearchQuery maps request parameters onto a ServiceSearchQuery,
// applying the configured paging limits.
func (s *SearchAPI) parseSearchQuery(r *http.Request) (search.ServiceSearchQuery, error) {
	params := r.URL.Query()
	q := search.NewServiceSearchQuery(params.Get("q"))

	if tags := params["tags"]; len(tags) > 0 {
		q.Tags = q.Tags.Append(query.ParseTagsPredicate(tags))
	}

	if v := params.Get("order"); v != "" {
		order, ok := search.ParseSearchOrder(v)
		if !ok {
			return q, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
				"unknown search order %q", v)
		}
		q.Order = order
	}

	var err error
	if q.Offset, err = intParam(params.Get("offset"), 0); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(params.Get("limit"), s.cfg.DefaultLimit); err != nil {
		return q, err
	}
	if q.Limit > s.cfg.MaxLimit {
		q.Limit = s.cfg.MaxLimit
	}
	if q.Limit <= 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if q.MinPoints, err = intParam(params.Get("minPoints"), 0); err != nil {
		return q, err
	}
	if q.UpdatedInDays, err = intParam(params.Get("updatedInDays"), 0); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"invalid numeric parameter %q", v)
	}
	return n, nil
}

func (s *SearchAPI) handleIndexInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.index.IndexInfo())
}

func (s *SearchAPI) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *SearchAPI) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.cache.Invalidate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
