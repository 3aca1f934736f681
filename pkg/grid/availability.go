package grid

import (
	"context"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"go.uber.org/zap"
)

// AvailabilityReader is the read side the validation engine needs.
type AvailabilityReader interface {
	Availability(key models.CellKey) (models.AvailabilityRecord, bool)
}

// AvailabilityStore owns the availability map. The map only changes when
// the document store pushes a snapshot of the availability collection.
type AvailabilityStore struct {
	docs   docstore.Store
	logger *zap.Logger

	mu      sync.RWMutex
	records map[models.CellKey]models.AvailabilityRecord
	err     error
	unsub   docstore.Unsubscribe
}

// NewAvailabilityStore creates a store; call Start to subscribe.
func NewAvailabilityStore(docs docstore.Store, logger *zap.Logger) *AvailabilityStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityStore{
		docs:    docs,
		logger:  logger,
		records: make(map[models.CellKey]models.AvailabilityRecord),
	}
}

// Start subscribes to the availability collection.
func (s *AvailabilityStore) Start() {
	unsub := s.docs.Subscribe(docstore.Collection(docstore.CollectionAvailability), s.onSnapshot, s.onError)
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
}

// Close ends the subscription.
func (s *AvailabilityStore) Close() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *AvailabilityStore) onSnapshot(snap docstore.Snapshot) {
	records := make(map[models.CellKey]models.AvailabilityRecord, len(snap))
	for _, doc := range snap {
		var rec models.AvailabilityRecord
		if err := docstore.Decode(doc.Data, &rec); err != nil {
			s.logger.Warn("skipping malformed availability", zap.String("cell", doc.ID), zap.Error(err))
			continue
		}
		records[models.CellKey(doc.ID)] = rec
	}

	s.mu.Lock()
	s.records = records
	s.err = nil
	s.mu.Unlock()
}

func (s *AvailabilityStore) onError(err error) {
	s.logger.Error("availability subscription failed", zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err returns the last subscription failure, nil once a snapshot arrives again.
func (s *AvailabilityStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Availability implements AvailabilityReader.
func (s *AvailabilityStore) Availability(key models.CellKey) (models.AvailabilityRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// All returns a copy of every known record.
func (s *AvailabilityStore) All() map[models.CellKey]models.AvailabilityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.CellKey]models.AvailabilityRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Set merges patch into the current record of key, starting from an
// undeclared record when none exists, and writes the merged record.
func (s *AvailabilityStore) Set(ctx context.Context, key models.CellKey, patch models.AvailabilityPatch) error {
	if _, _, err := key.Split(); err != nil {
		return err
	}
	current, _ := s.Availability(key)
	merged := patch.Apply(current)
	return s.docs.Write(ctx, docstore.Doc(docstore.CollectionAvailability, string(key)), merged.Fields())
}

// Clear resets the declaration of key. The memo survives.
func (s *AvailabilityStore) Clear(ctx context.Context, key models.CellKey) error {
	return s.Set(ctx, key, models.AvailabilityPatch{
		Type:  models.Ptr(models.AvailabilityNone),
		Hours: models.Ptr(""),
		Note:  models.Ptr(""),
	})
}
