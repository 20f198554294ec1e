package serv

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/adtools/gaqlgate/core"
	"github.com/adtools/gaqlgate/internal/util"
)

const version = "1.0.0"

// Service wires the cache, cursor store, transport and query tooling
// into one unit behind the MCP and CLI surfaces.
type Service struct {
	conf        *Config
	log         *zap.SugaredLogger
	zlog        *zap.Logger
	cache       *CacheManager
	cursorCache CursorCache
	transport   Transport
	optimizer   *core.Optimizer
	started     time.Time
}

// Option configures a Service during construction
type Option func(*Service) error

// OptionSetLogger replaces the default logger
func OptionSetLogger(zlog *zap.Logger) Option {
	return func(s *Service) error {
		s.zlog = zlog
		s.log = zlog.Sugar()
		return nil
	}
}

// OptionSetLogOutput redirects log output, used by tests
func OptionSetLogOutput(out zapcore.WriteSyncer) Option {
	return func(s *Service) error {
		zlog := util.NewLoggerWithOutput(false, util.ParseLevel(s.conf.LogLevel), out)
		s.zlog = zlog
		s.log = zlog.Sugar()
		return nil
	}
}

// OptionSetCache replaces the cache backend, used by tests
func OptionSetCache(backend Cache) Option {
	return func(s *Service) error {
		s.cache = NewCacheManager(backend, s.conf.TTLOverrides(), s.log)
		return nil
	}
}

// OptionSetTransport replaces the query transport
func OptionSetTransport(t Transport) Option {
	return func(s *Service) error {
		s.transport = t
		return nil
	}
}

// NewService creates a fully initialized service from conf
func NewService(conf *Config, options ...Option) (*Service, error) {
	if conf == nil {
		return nil, fmt.Errorf("no configuration")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	zlog := util.NewLogger(false, util.ParseLevel(conf.LogLevel))

	s := &Service{
		conf:      conf,
		zlog:      zlog,
		log:       zlog.Sugar(),
		optimizer: core.NewOptimizer(),
		started:   time.Now(),
	}

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	if s.cache == nil {
		s.initCache()
	}
	if s.cursorCache == nil {
		s.initCursorCache()
	}
	if s.transport == nil {
		if err := s.initTransport(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// initCache builds the cache manager over the configured backend.
// A failed Redis connection degrades to the memory backend rather
// than failing startup; the gateway works without its cache.
func (s *Service) initCache() {
	var backend Cache

	switch s.conf.Cache.Backend {
	case "none":
		backend = NewNullCache()
		s.log.Info("response cache disabled")

	case "redis":
		cache, err := NewRedisCache(s.conf.Cache.RedisURL)
		if err != nil {
			s.log.Warnf("redis unavailable, falling back to in-memory cache: %s", err)
			backend = s.newMemoryBackend()
		} else {
			backend = cache
			s.log.Info("redis response cache enabled")
		}

	default:
		backend = s.newMemoryBackend()
	}

	s.cache = NewCacheManager(backend, s.conf.TTLOverrides(), s.log)
}

func (s *Service) newMemoryBackend() Cache {
	mc, err := NewMemoryCache(s.conf.Cache.MaxEntries)
	if err != nil {
		s.log.Warnf("failed to initialize memory cache: %s", err)
		return NewNullCache()
	}
	s.log.Info("using in-memory response cache")
	return mc
}

// initCursorCache builds the fetch-more cursor store
func (s *Service) initCursorCache() {
	ttl := time.Duration(s.conf.Cursor.TTLMinutes) * time.Minute
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	redisURL := ""
	if s.conf.Cache.Backend == "redis" {
		redisURL = s.conf.Cache.RedisURL
	}

	cache, _ := NewCursorCache(redisURL, ttl, s.conf.Cursor.MaxEntries)
	s.cursorCache = cache
}

// initTransport builds the configured query transport
func (s *Service) initTransport() error {
	switch s.conf.Transport.Kind {
	case "", "file":
		if s.conf.Transport.FixtureDir == "" {
			return fmt.Errorf("file transport requires transport.fixture_dir")
		}
		t, err := NewFileTransport(s.conf.Transport.FixtureDir)
		if err != nil {
			return err
		}
		s.transport = t
		return nil
	default:
		return fmt.Errorf("unknown transport kind: %s", s.conf.Transport.Kind)
	}
}

// Cache exposes the cache manager
func (s *Service) Cache() *CacheManager {
	return s.cache
}

// Optimizer exposes the query optimizer
func (s *Service) Optimizer() *core.Optimizer {
	return s.optimizer
}

// Version returns the service version string
func (s *Service) Version() string {
	return version
}

// Version returns the build version string
func Version() string {
	return version
}

// Close releases the cache, cursor store and logger
func (s *Service) Close() error {
	var firstErr error
	if s.cursorCache != nil {
		if err := s.cursorCache.Close(); err != nil {
			firstErr = err
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.zlog.Sync() //nolint:errcheck
	return firstErr
}
