package beatmaps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/refx-online/omajinai/internal/domain/beatmap"
	"github.com/refx-online/omajinai/pkg/logger"
	"github.com/refx-online/omajinai/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultCacheBound   = 1000
	defaultFetchTimeout = 30 * time.Second
	fileExtension       = ".osu"
)

// Service resolves beatmap ids. Resolution order: memory cache, local disk,
// remote source (when configured). Fetched bytes are persisted to disk
// best-effort before parsing.
type Service struct {
	cache     *cache
	dir       string
	remoteURL string
	client    *http.Client
	logger    logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCacheBound sets the maximum number of cached beatmaps.
func WithCacheBound(bound int) Option {
	return func(s *Service) {
		if bound > 0 {
			s.cache = newCache(bound)
		}
	}
}

// WithRemoteSource enables fetching missing beatmaps from baseURL.
func WithRemoteSource(baseURL string) Option {
	return func(s *Service) {
		s.remoteURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client for remote fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a beatmap service storing files under dir.
func New(dir string, opts ...Option) *Service {
	s := &Service{
		cache:  newCache(defaultCacheBound),
		dir:    dir,
		client: &http.Client{Timeout: defaultFetchTimeout},
		logger: logger.Get().Named("beatmaps"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get resolves a beatmap id to a parsed chart.
//
// Returns ErrNotFound when the beatmap cannot be located anywhere,
// ErrExternalService on remote fetch failures, and a beatmap.ErrMalformed
// wrap when the bytes do not parse.
func (s *Service) Get(ctx context.Context, id int64) (*beatmap.Beatmap, error) {
	if bm, ok := s.cache.get(id); ok {
		metrics.RecordBeatmapCacheHit()
		return bm, nil
	}
	metrics.RecordBeatmapCacheMiss()

	data, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	bm, err := beatmap.FromBytes(id, data)
	if err != nil {
		return nil, fmt.Errorf("parsing beatmap %d: %w", id, err)
	}

	if evicted := s.cache.put(id, bm); evicted > 0 {
		metrics.RecordBeatmapCacheEviction(evicted)
		s.logger.Warn(ctx, "cache bound reached, evicted oldest entries",
			logger.Int("evicted", evicted),
		)
	}
	metrics.UpdateBeatmapCacheSize(s.cache.len())

	return bm.Clone(), nil
}

// load returns the raw chart bytes from disk or the remote source.
func (s *Service) load(ctx context.Context, id int64) ([]byte, error) {
	path := s.path(id)

	if data, err := os.ReadFile(path); err == nil {
		s.logger.Debug(ctx, "beatmap loaded from disk", logger.Int64("beatmap_id", id))
		return data, nil
	}

	if s.remoteURL == "" {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	data, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	// Persisting is fire-and-forget: a full disk must not fail the caller.
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Warn(ctx, "failed to persist beatmap locally",
			logger.Int64("beatmap_id", id),
			logger.Error(err),
		)
	}

	return data, nil
}

// fetch downloads the chart from the remote source.
func (s *Service) fetch(ctx context.Context, id int64) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/get-osu/%d", s.remoteURL, id)
	s.logger.Info(ctx, "fetching beatmap", logger.Int64("beatmap_id", id), logger.String("url", url))
	metrics.RecordBeatmapFetch()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.RecordBeatmapFetchError()
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordBeatmapFetchError()
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	case resp.StatusCode != http.StatusOK:
		metrics.RecordBeatmapFetchError()
		return nil, fmt.Errorf("%w: status %d", ErrExternalService, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordBeatmapFetchError()
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	return data, nil
}

func (s *Service) path(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d%s", id, fileExtension))
}
