package grid

import (
	"context"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"go.uber.org/zap"
)

// AssignmentStore owns the assignment map. It has no exported write path;
// every write goes through Engine.Assign.
type AssignmentStore struct {
	docs   docstore.Store
	logger *zap.Logger

	mu      sync.RWMutex
	records map[models.CellKey]models.AssignmentRecord
	err     error
	unsub   docstore.Unsubscribe
}

// NewAssignmentStore creates a store; call Start to subscribe.
func NewAssignmentStore(docs docstore.Store, logger *zap.Logger) *AssignmentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentStore{
		docs:    docs,
		logger:  logger,
		records: make(map[models.CellKey]models.AssignmentRecord),
	}
}

// Start subscribes to the assignments collection.
func (s *AssignmentStore) Start() {
	unsub := s.docs.Subscribe(docstore.Collection(docstore.CollectionAssignments), s.onSnapshot, s.onError)
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
}

// Close ends the subscription.
func (s *AssignmentStore) Close() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *AssignmentStore) onSnapshot(snap docstore.Snapshot) {
	records := make(map[models.CellKey]models.AssignmentRecord, len(snap))
	for _, doc := range snap {
		var rec models.AssignmentRecord
		if err := docstore.Decode(doc.Data, &rec); err != nil {
			s.logger.Warn("skipping malformed assignment", zap.String("cell", doc.ID), zap.Error(err))
			continue
		}
		records[models.CellKey(doc.ID)] = rec
	}

	s.mu.Lock()
	s.records = records
	s.err = nil
	s.mu.Unlock()
}

func (s *AssignmentStore) onError(err error) {
	s.logger.Error("assignment subscription failed", zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err returns the last subscription failure.
func (s *AssignmentStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Assignment returns the record of key.
func (s *AssignmentStore) Assignment(key models.CellKey) (models.AssignmentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// All returns a copy of every known record.
func (s *AssignmentStore) All() map[models.CellKey]models.AssignmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.CellKey]models.AssignmentRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

func (s *AssignmentStore) put(ctx context.Context, key models.CellKey, task string) error {
	return s.docs.Write(ctx, docstore.Doc(docstore.CollectionAssignments, string(key)), map[string]any{"task": task})
}

// Assigner is what a batch commit writes through.
type Assigner interface {
	Assign(ctx context.Context, key models.CellKey, task string) error
}

// Engine validates assignment writes against the availability of the
// target cell at the moment of the write. Later availability changes do not
// revisit existing assignments.
type Engine struct {
	availability AvailabilityReader
	assignments  *AssignmentStore
}

// NewEngine wires the engine to its availability source and assignment store.
func NewEngine(availability AvailabilityReader, assignments *AssignmentStore) *Engine {
	return &Engine{availability: availability, assignments: assignments}
}

// Check decides whether assigning task to key is legal. Unassigning always is.
func (e *Engine) Check(key models.CellKey, task string) error {
	if task == "" {
		return nil
	}
	staffID, _, err := key.Split()
	if err != nil {
		return err
	}
	rec, ok := e.availability.Availability(key)
	switch {
	case !ok || !rec.Type.Declared():
		return apperr.ErrNoAvailabilityDeclared.WithMessage("%s has not declared availability for this day", staffID)
	case rec.Type == models.AvailabilityNG:
		return apperr.ErrDayUnavailable.WithMessage("%s is unavailable on this day", staffID)
	}
	return nil
}

// Assign writes task to key if Check allows it; rejected writes are never issued.
func (e *Engine) Assign(ctx context.Context, key models.CellKey, task string) error {
	if task == "" {
		if _, _, err := key.Split(); err != nil {
			return err
		}
	} else if err := e.Check(key, task); err != nil {
		return err
	}
	return e.assignments.put(ctx, key, task)
}
