package identity

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix     = "webchat_session_"
	sessionPrefix = "sess_"
)

// Key returns the tenant-scoped storage key for the session identifier.
func Key(tenantID string) string {
	return keyPrefix + tenantID
}

// Store resolves the anonymous visitor identity for a tenant. It never fails:
// when storage cannot be read or written, a generated identifier is used for
// the rest of the process lifetime.
type Store struct {
	storage Storage
	now     func() time.Time
	// resolved memoizes identifiers per tenant so repeated calls agree even
	// when storage is unavailable.
	resolved map[string]string
}

type StoreOption func(*Store)

// WithClock overrides the time source used in generated identifiers.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(storage Storage, opts ...StoreOption) *Store {
	if storage == nil {
		storage = UnavailableStorage{}
	}
	s := &Store{storage: storage, now: time.Now, resolved: map[string]string{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateSessionID returns the persisted identifier for tenantID, creating
// and persisting a new one if none is stored.
func (s *Store) GetOrCreateSessionID(ctx context.Context, tenantID string) string {
	if id, ok := s.resolved[tenantID]; ok {
		return id
	}
	logger := log.With().Str("component", "identity").Str("tenant", tenantID).Logger()
	key := Key(tenantID)

	id, err := s.storage.Get(ctx, key)
	switch {
	case err == nil && strings.TrimSpace(id) != "":
		s.resolved[tenantID] = id
		return id
	case err != nil && !errors.Is(err, ErrNotFound):
		logger.Debug().Err(err).Msg("session storage read failed, generating a new session id")
	}

	id = s.generate()
	if err := s.storage.Set(ctx, key, id); err != nil {
		logger.Debug().Err(err).Msg("session storage write failed, session id kept in memory only")
	}
	s.resolved[tenantID] = id
	return id
}

// Forget deletes the persisted identifier for tenantID and drops the memoized
// value, so the next call generates a fresh one.
func (s *Store) Forget(ctx context.Context, tenantID string) error {
	delete(s.resolved, tenantID)
	return s.storage.Delete(ctx, Key(tenantID))
}

// Peek returns the persisted identifier without creating one.
func (s *Store) Peek(ctx context.Context, tenantID string) (string, bool) {
	id, err := s.storage.Get(ctx, Key(tenantID))
	if err != nil || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// generate builds "sess_" + a random base36 part + the base36 unix millis.
func (s *Store) generate() string {
	u := uuid.New()
	var hi uint64
	for _, b := range u[:8] {
		hi = hi<<8 | uint64(b)
	}
	var lo uint64
	for _, b := range u[8:] {
		lo = lo<<8 | uint64(b)
	}
	random := strconv.FormatUint(hi, 36) + strconv.FormatUint(lo, 36)
	return sessionPrefix + random + strconv.FormatInt(s.now().UnixMilli(), 36)
}
