package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swapquote/internal/logger"
	"swapquote/internal/metrics"
)

// TTL is how long leaderboard and volume answers are reused.
const TTL = 60 * time.Second

// Upper bounds on in-memory entries. Volumes are keyed per trader, so
// their key space is as wide as the callers want it to be.
const (
	MaxBoardEntries  = 256
	MaxVolumeEntries = 10000
)

// Service layers an in-memory cache and an optional shared cache over a Source.
type Service struct {
	src     Source
	shared  SharedCache
	ttl     time.Duration
	boards  *Cache[[]Entry]
	volumes *Cache[Volume]
	log     *logger.Logger
}

// NewService builds a Service; shared may be nil.
func NewService(src Source, shared SharedCache, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = TTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		src:     src,
		shared:  shared,
		ttl:     ttl,
		boards:  NewCache[[]Entry](MaxBoardEntries, ttl),
		volumes: NewCache[Volume](MaxVolumeEntries, ttl),
		log:     log,
	}
}

// TTL is the freshness window, used for HTTP cache headers.
func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) Leaderboard(ctx context.Context, chainID uint64) ([]Entry, error) {
	key := fmt.Sprintf("leaderboard:%d", chainID)
	return cached(ctx, s, s.boards, "leaderboard", key, func(ctx context.Context) ([]Entry, error) {
		return s.src.Leaderboard(ctx, chainID)
	})
}

func (s *Service) UserVolume(ctx context.Context, chainID uint64, address common.Address) (Volume, error) {
	key := fmt.Sprintf("volume:%d:%s", chainID, strings.ToLower(address.Hex()))
	return cached(ctx, s, s.volumes, "volume", key, func(ctx context.Context) (Volume, error) {
		return s.src.UserVolume(ctx, chainID, address)
	})
}

// cached reads memory, then the shared cache, then load, filling the upper
// levels on the way back.
func cached[T any](ctx context.Context, s *Service, mem *Cache[T], name, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := mem.Get(key, s.ttl); ok {
		metrics.CacheLookups.WithLabelValues(name+"_memory", "hit").Inc()
		return v, nil
	}
	metrics.CacheLookups.WithLabelValues(name+"_memory", "miss").Inc()

	if s.shared != nil {
		var v T
		err := s.shared.GetJSON(ctx, key, &v)
		switch {
		case err == nil:
			metrics.CacheLookups.WithLabelValues(name+"_redis", "hit").Inc()
			mem.Put(key, v)
			return v, nil
		case errors.Is(err, ErrCacheMiss):
			metrics.CacheLookups.WithLabelValues(name+"_redis", "miss").Inc()
		default:
			s.log.Warn("shared cache read failed", "key", key, "error", err)
		}
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	mem.Put(key, v)
	if s.shared != nil {
		if err := s.shared.SetJSON(ctx, key, v, s.ttl); err != nil {
			s.log.Warn("shared cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}
