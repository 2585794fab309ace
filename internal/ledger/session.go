package ledger

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tlacroix/receiptledger/internal/common"
)

// Tokens are reused for 10 minutes from acquisition, then lazily
// re-acquired on the next request.
const sessionTTL = 10 * time.Minute

// SessionManager caches the process-wide ledger session token. Expiry is
// evaluated lazily; refreshes are serialized behind a single flight so
// concurrent expired callers share one authenticate call. A runtime
// configuration update invalidates the token synchronously.
type SessionManager struct {
	client *Client
	store  *common.Store
	log    *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	token      string
	acquiredAt time.Time
	gen        uint64
}

func NewSessionManager(client *Client, store *common.Store, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &SessionManager{
		client: client,
		store:  store,
		log:    logger,
		ttl:    sessionTTL,
		now:    time.Now,
	}
	store.OnUpdate(m.Invalidate)
	return m
}

// Token returns the cached session token, authenticating first when none
// is cached, the cached one has outlived its TTL, or the configuration
// has changed since it was minted.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	_, gen := m.store.Ledger()

	if token, ok := m.cached(gen); ok {
		return token, nil
	}

	// The flight key includes the config generation so a refresh started
	// against stale credentials can never satisfy callers holding the
	// new configuration.
	v, err, shared := m.group.Do("auth-"+strconv.FormatUint(gen, 10), func() (any, error) {
		if token, ok := m.cached(gen); ok {
			return token, nil
		}
		m.log.Info("ledger.session.refresh", "config_gen", gen)
		token, err := m.client.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.token = token
		m.acquiredAt = m.now()
		m.gen = gen
		m.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.log.Debug("ledger.session.refresh_shared", "config_gen", gen)
	}
	return v.(string), nil
}

// Open returns a token with the dossier scope freshly opened — the
// required preamble to any upload or post. A rejected dossier open
// invalidates the cached token and aborts the caller's operation.
func (m *SessionManager) Open(ctx context.Context) (string, error) {
	token, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	if err := m.client.OpenDossier(ctx, token); err != nil {
		m.Invalidate()
		return "", err
	}
	return token, nil
}

// Invalidate discards the cached token. Called on configuration updates
// and on session-level rejections.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	m.log.Info("ledger.session.invalidated")
}

func (m *SessionManager) cached(gen uint64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || m.gen != gen {
		return "", false
	}
	if m.now().Sub(m.acquiredAt) >= m.ttl {
		return "", false
	}
	return m.token, true
}
