// internal/infra/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TTL classes per data kind.
const (
	DefaultTTL   = 5 * time.Minute
	DashboardTTL = 10 * time.Minute
)

const KeyPrefix = "ft:"

const KeyDashboardStats = "dashboard:stats"

// Backend is the raw key/value store behind the Service.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key, campusID string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes keys matching a glob pattern ('*', '?', '\' escapes).
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	Ping(ctx context.Context) error
}

// Service namespaces keys per campus and turns every backend failure into a
// miss or no-op. Nothing on the correctness path may depend on it.
type Service struct {
	backend Backend
	logger  *logrus.Entry
}

func NewService(backend Backend, logger *logrus.Entry) *Service {
	return &Service{backend: backend, logger: logger}
}

// campusSegments percent-encodes the key separator so a campus id never
// spans more than one segment.
var campusSegments = strings.NewReplacer("%", "%25", ":", "%3A")

// MakeKey builds "ft:<campus>:<key>", or "ft:<key>" for global entries.
func MakeKey(key, campusID string) string {
	if campusID != "" {
		return KeyPrefix + campusSegments.Replace(campusID) + ":" + key
	}
	return KeyPrefix + key
}

// makePattern is MakeKey for globs: the campus segment is encoded and escaped
// so it only ever matches itself.
func makePattern(pattern, campusID string) string {
	if campusID != "" {
		return KeyPrefix + escapeGlob(campusSegments.Replace(campusID)) + ":" + pattern
	}
	return KeyPrefix + pattern
}

func (s *Service) enabled() bool {
	return s != nil && s.backend != nil
}

// Get decodes the cached value into dst and reports whether it was a hit.
func (s *Service) Get(ctx context.Context, key, campusID string, dst any) bool {
	if !s.enabled() {
		return false
	}
	fullKey := MakeKey(key, campusID)
	data, ok, err := s.backend.Get(ctx, fullKey)
	if err != nil {
		s.logger.WithError(err).WithField("key", fullKey).Warn("Cache get error")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.WithError(err).WithField("key", fullKey).Warn("Cache entry could not be decoded")
		return false
	}
	return true
}

func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration, campusID string) bool {
	if !s.enabled() {
		return false
	}
	fullKey := MakeKey(key, campusID)
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", fullKey).Warn("Cache value could not be encoded")
		return false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.backend.Set(ctx, fullKey, campusID, data, ttl); err != nil {
		s.logger.WithError(err).WithField("key", fullKey).Warn("Cache set error")
		return false
	}
	return true
}

func (s *Service) Delete(ctx context.Context, key, campusID string) bool {
	if !s.enabled() {
		return false
	}
	fullKey := MakeKey(key, campusID)
	if err := s.backend.Delete(ctx, fullKey); err != nil {
		s.logger.WithError(err).WithField("key", fullKey).Warn("Cache delete error")
		return false
	}
	return true
}

// InvalidatePattern deletes every key matching pattern inside the campus
// namespace (or the global namespace when campusID is empty).
func (s *Service) InvalidatePattern(ctx context.Context, pattern, campusID string) int {
	if !s.enabled() {
		return 0
	}
	full := makePattern(pattern, campusID)
	n, err := s.backend.DeleteMatching(ctx, full)
	if err != nil {
		s.logger.WithError(err).WithField("pattern", full).Warn("Cache invalidate_pattern error")
		return 0
	}
	return n
}

func (s *Service) Healthy(ctx context.Context) bool {
	if !s.enabled() {
		return false
	}
	return s.backend.Ping(ctx) == nil
}

func (s *Service) GetDashboard(ctx context.Context, campusID string, dst any) bool {
	return s.Get(ctx, KeyDashboardStats, campusID, dst)
}

func (s *Service) SetDashboard(ctx context.Context, campusID string, stats any) bool {
	return s.Set(ctx, KeyDashboardStats, stats, DashboardTTL, campusID)
}

// InvalidateDashboard satisfies the invalidation hook every write path calls.
func (s *Service) InvalidateDashboard(ctx context.Context, campusID string) {
	s.Delete(ctx, KeyDashboardStats, campusID)
}
