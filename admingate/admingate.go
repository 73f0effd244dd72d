package admingate

import (
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore holds the admin identity/secret pairs. Secrets are bcrypt hashes.
type CredentialStore struct {
	hashes map[string][]byte
}

// NewCredentialStore parses "id:bcrypt-hash" entries.
func NewCredentialStore(entries []string) (*CredentialStore, error) {
	cs := &CredentialStore{hashes: make(map[string][]byte, len(entries))}
	for _, e := range entries {
		id, hash, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || id == "" || hash == "" {
			return nil, errors.Errorf("[NewCredentialStore] malformed entry %q", e)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, errors.Wrapf(err, "[NewCredentialStore] entry %q", id)
		}
		cs.hashes[id] = []byte(hash)
	}
	return cs, nil
}

func (cs *CredentialStore) Len() int {
	return len(cs.hashes)
}

// Verify reports whether secret matches the stored hash for id.
func (cs *CredentialStore) Verify(id, secret string) bool {
	hash, ok := cs.hashes[id]
	if !ok {
		// keep timing similar for unknown ids
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("swishview-admin-gate"), bcrypt.MinCost)

// Flag is the local admin-gate marker. It is not a provider session and carries no
// principal.
type Flag struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Gate checks credentials against the store and hands out flags.
type Gate struct {
	store   *CredentialStore
	nowTime func() time.Time
}

type GateOption func(*Gate)

func WithNowTime(nowFunc func() time.Time) GateOption {
	return func(g *Gate) {
		g.nowTime = nowFunc
	}
}

func New(store *CredentialStore, options ...GateOption) (*Gate, error) {
	if store == nil {
		return nil, errors.New("[admingate.New] credential store is required")
	}
	g := &Gate{store: store, nowTime: time.Now}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Check returns a fresh Flag when id and secret match the store.
func (g *Gate) Check(id, secret string) (Flag, error) {
	if !g.store.Verify(id, secret) {
		return Flag{}, apperrors.NewAuthError("admin-gate", apperrors.ErrInvalidCredentials)
	}
	return Flag{ID: id, Timestamp: g.nowTime()}, nil
}

// Flags holds the flag set for each visitor.
type Flags struct {
	lock  sync.RWMutex
	flags map[string]Flag
}

func NewFlags() *Flags {
	return &Flags{flags: make(map[string]Flag)}
}

func (f *Flags) Set(visitorID string, flag Flag) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.flags[visitorID] = flag
}

func (f *Flags) Get(visitorID string) (Flag, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	flag, ok := f.flags[visitorID]
	return flag, ok
}

func (f *Flags) Clear(visitorID string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.flags, visitorID)
}
