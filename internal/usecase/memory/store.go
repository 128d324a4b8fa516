// Package memory keeps bounded per-session chat history.
package memory

import (
	"container/list"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

// Defaults.
const (
	DefaultTokenLimit  = 4000
	DefaultIdleTTL     = 24 * time.Hour
	DefaultMaxSessions = 10000
)

// TokenCounter measures turn size.
type TokenCounter interface {
	Count(text string) int
}

// Config bounds the store. Zero IdleTTL or MaxSessions disables that bound.
type Config struct {
	TokenLimit  int
	IdleTTL     time.Duration
	MaxSessions int
}

// Store maps session ids to histories. Sessions are created on first use,
// expire after IdleTTL without access, and the least recently used session
// is dropped once MaxSessions is exceeded.
type Store struct {
	cfg     Config
	counter TokenCounter
	gauge   prometheus.Gauge
	logger  *zap.Logger

	mu    sync.Mutex // serializes create and overflow eviction
	cache *gocache.Cache

	// recency orders live sessions, most recent at the front. It has its own
	// lock because the cache eviction callback runs with or without mu held.
	recencyMu sync.Mutex
	recency   *list.List
	elems     map[string]*list.Element
}

// Option configures a Store.
type Option func(*Store)

// WithGauge tracks the number of live sessions.
func WithGauge(g prometheus.Gauge) Option {
	return func(s *Store) { s.gauge = g }
}

// New creates a Store.
func New(cfg Config, counter TokenCounter, log *zap.Logger, opts ...Option) *Store {
	if cfg.TokenLimit <= 0 {
		cfg.TokenLimit = DefaultTokenLimit
	}
	if log == nil {
		log = zap.NewNop()
	}

	ttl, cleanup := gocache.NoExpiration, time.Duration(0)
	if cfg.IdleTTL > 0 {
		ttl = cfg.IdleTTL
		cleanup = cfg.IdleTTL / 2
		if cleanup < time.Second {
			cleanup = time.Second
		}
	}

	s := &Store{
		cfg:     cfg,
		counter: counter,
		logger:  log,
		cache:   gocache.New(ttl, cleanup),
		recency: list.New(),
		elems:   make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache.OnEvicted(func(id string, v any) {
		s.forget(id, v.(*History))
		if s.gauge != nil {
			s.gauge.Dec()
		}
		s.logger.Debug("Session dropped", zap.String("session_id", id))
	})
	return s
}

// Get returns the history for id, creating an empty one on first use.
// Every call counts as access for idle expiry and LRU.
func (s *Store) Get(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(id); ok {
		h := v.(*History)
		s.touch(h)
		s.cache.SetDefault(id, h)
		return h
	}

	s.cache.Delete(id) // an expired entry not yet collected
	h := &History{id: id, limit: s.cfg.TokenLimit, counter: s.counter, logger: s.logger}
	s.touch(h)
	s.cache.SetDefault(id, h)
	if s.gauge != nil {
		s.gauge.Inc()
	}
	s.evictOverflow()
	return h
}

// Append adds a turn to the session, evicting its oldest turns when the
// token limit is exceeded.
func (s *Store) Append(id, role, content string) {
	s.Get(id).Append(role, content)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Close drops all sessions.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gauge != nil {
		s.gauge.Sub(float64(s.cache.ItemCount()))
	}
	s.cache.Flush()

	s.recencyMu.Lock()
	s.recency.Init()
	clear(s.elems)
	s.recencyMu.Unlock()
}

// touch marks h as the most recently used session.
func (s *Store) touch(h *History) {
	s.recencyMu.Lock()
	defer s.recencyMu.Unlock()
	if e, ok := s.elems[h.id]; ok {
		if e.Value == h {
			s.recency.MoveToFront(e)
			return
		}
		s.recency.Remove(e)
	}
	s.elems[h.id] = s.recency.PushFront(h)
}

// forget drops h from the recency list. A newer history under the same id
// is left alone.
func (s *Store) forget(id string, h *History) {
	s.recencyMu.Lock()
	defer s.recencyMu.Unlock()
	if e, ok := s.elems[id]; ok && e.Value == h {
		s.recency.Remove(e)
		delete(s.elems, id)
	}
}

// leastRecent unlinks and returns the oldest session, or nil when the list
// holds no more than limit sessions.
func (s *Store) leastRecent(limit int) *History {
	s.recencyMu.Lock()
	defer s.recencyMu.Unlock()
	if s.recency.Len() <= limit {
		return nil
	}
	h := s.recency.Remove(s.recency.Back()).(*History)
	delete(s.elems, h.id)
	return h
}

// evictOverflow drops least recently used sessions above MaxSessions.
// Callers hold s.mu.
func (s *Store) evictOverflow() {
	if s.cfg.MaxSessions <= 0 {
		return
	}
	for h := s.leastRecent(s.cfg.MaxSessions); h != nil; h = s.leastRecent(s.cfg.MaxSessions) {
		s.cache.Delete(h.id)
	}
}

type turn struct {
	msg    domain.Message
	tokens int
}

// History is one session's turns. Methods lock the session only.
type History struct {
	id      string
	limit   int
	counter TokenCounter
	logger  *zap.Logger

	mu     sync.Mutex
	turns  []turn
	tokens int
}

// Append adds a turn and evicts the oldest turns until the total is within
// the limit. A single turn larger than the limit is not retained.
func (h *History) Append(role, content string) {
	n := h.counter.Count(content)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, turn{msg: domain.Message{Role: role, Content: content}, tokens: n})
	h.tokens += n

	evicted := 0
	for h.tokens > h.limit && len(h.turns) > 0 {
		h.tokens -= h.turns[0].tokens
		h.turns[0] = turn{}
		h.turns = h.turns[1:]
		evicted++
	}
	if evicted > 0 {
		h.logger.Debug("Session turns evicted",
			zap.String("session_id", h.id), zap.Int("evicted", evicted), zap.Int("tokens", h.tokens))
	}
}

// Turns returns a copy of the turns, oldest first.
func (h *History) Turns() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Message, len(h.turns))
	for i, t := range h.turns {
		out[i] = t.msg
	}
	return out
}

// Tokens returns the current token total.
func (h *History) Tokens() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tokens
}

// ID returns the session id.
func (h *History) ID() string { return h.id }
