package auth

import (
	"context"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Credentials is what the login flow needs from credential storage.
type Credentials interface {
	Ready() bool
	Has(accountID string) bool
	Verify(accountID, password string) bool
	Save(ctx context.Context, accountID, password string) error
	Delete(ctx context.Context, accountID string) error
}

// CredentialStore keeps the credential records of the auth collection,
// one document per account id holding a bcrypt hash.
type CredentialStore struct {
	docs   docstore.Store
	cost   int
	logger *zap.Logger

	mu     sync.RWMutex
	hashes map[string]string
	ready  bool
	err    error
	unsub  docstore.Unsubscribe
}

// NewCredentialStore creates a store hashing with the given bcrypt cost.
func NewCredentialStore(docs docstore.Store, cost int, logger *zap.Logger) *CredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialStore{
		docs:   docs,
		cost:   cost,
		logger: logger,
		hashes: make(map[string]string),
	}
}

// Start subscribes to the auth collection.
func (s *CredentialStore) Start() {
	unsub := s.docs.Subscribe(docstore.Collection(docstore.CollectionAuth), s.onSnapshot, s.onError)
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
}

// Close ends the subscription.
func (s *CredentialStore) Close() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *CredentialStore) onSnapshot(snap docstore.Snapshot) {
	hashes := make(map[string]string, len(snap))
	for _, doc := range snap {
		var body struct {
			Password string `json:"password"`
		}
		if err := docstore.Decode(doc.Data, &body); err != nil || body.Password == "" {
			s.logger.Warn("skipping malformed credential", zap.String("accountID", doc.ID))
			continue
		}
		hashes[doc.ID] = body.Password
	}

	s.mu.Lock()
	s.hashes = hashes
	s.ready = true
	s.err = nil
	s.mu.Unlock()
}

func (s *CredentialStore) onError(err error) {
	s.logger.Error("credential subscription failed", zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Ready reports whether the first snapshot has arrived.
func (s *CredentialStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Err returns the last subscription failure.
func (s *CredentialStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Has reports whether a credential exists for accountID.
func (s *CredentialStore) Has(accountID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[accountID]
	return ok
}

// Verify compares password with the stored hash.
func (s *CredentialStore) Verify(accountID, password string) bool {
	s.mu.RLock()
	hash, ok := s.hashes[accountID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Save creates or overwrites the credential of accountID.
func (s *CredentialStore) Save(ctx context.Context, accountID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return apperr.ErrInternal.Wrap(err)
	}
	return s.docs.Write(ctx, docstore.Doc(docstore.CollectionAuth, accountID), map[string]any{"password": string(hash)})
}

// Delete removes the credential of accountID.
func (s *CredentialStore) Delete(ctx context.Context, accountID string) error {
	return s.docs.Delete(ctx, docstore.Doc(docstore.CollectionAuth, accountID))
}
