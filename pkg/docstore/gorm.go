package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Announcer tells other replicas that a collection changed.
type Announcer interface {
	Announce(ctx context.Context, collection string) error
}

// GormStore keeps documents in the documents table, scoped by namespace.
// Local subscribers are refreshed after each committed write; an optional
// Announcer propagates the change to other processes, which call Refresh.
type GormStore struct {
	db        *gorm.DB
	namespace string
	logger    *zap.Logger
	announcer Announcer

	mu     sync.Mutex
	subs   map[string][]*subscriber
	nextID int

	delivery deliveryLocks
}

// NewGormStore creates a store over an already migrated database.
func NewGormStore(db *gorm.DB, namespace string, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:        db,
		namespace: namespace,
		logger:    logger,
		subs:      make(map[string][]*subscriber),
	}
}

// SetAnnouncer installs the cross-replica announcer.
func (s *GormStore) SetAnnouncer(a Announcer) {
	s.announcer = a
}

// Subscribe implements Store.
func (s *GormStore) Subscribe(ref Ref, onUpdate UpdateFunc, onError ErrorFunc) Unsubscribe {
	unlock := s.delivery.lock(ref.Collection)
	s.mu.Lock()
	s.nextID++
	sub := &subscriber{id: s.nextID, ref: ref, onUpdate: onUpdate, onError: onError}
	s.subs[ref.Collection] = append(s.subs[ref.Collection], sub)
	s.mu.Unlock()

	snap, err := s.load(context.Background(), ref)
	deliver(sub, snap, err)
	unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.subs[ref.Collection]
			for i, existing := range subs {
				if existing.id == sub.id {
					s.subs[ref.Collection] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Write implements Store.
func (s *GormStore) Write(ctx context.Context, ref Ref, patch map[string]any) error {
	if err := validateRef(ref, true); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.Document
		current := map[string]any{}
		err := tx.Where("namespace = ? AND collection = ? AND doc_id = ?", s.namespace, ref.Collection, ref.ID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := json.Unmarshal([]byte(existing.Body), &current); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		body, err := json.Marshal(Merge(current, patch))
		if err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).Create(&database.Document{
			Namespace:  s.namespace,
			Collection: ref.Collection,
			DocID:      ref.ID,
			Body:       string(body),
		}).Error
	})
	if err != nil {
		return Classify(err)
	}

	s.changed(ctx, ref.Collection)
	return nil
}

// Delete implements Store.
func (s *GormStore) Delete(ctx context.Context, ref Ref) error {
	if err := validateRef(ref, true); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND collection = ? AND doc_id = ?", s.namespace, ref.Collection, ref.ID).
		Delete(&database.Document{}).Error
	if err != nil {
		return Classify(err)
	}

	s.changed(ctx, ref.Collection)
	return nil
}

// Refresh reloads and pushes snapshots to every subscriber of collection.
// Refreshes of one collection run one at a time, each loading after the
// previous one delivered.
func (s *GormStore) Refresh(collection string) {
	defer s.delivery.lock(collection)()

	s.mu.Lock()
	subs := append([]*subscriber(nil), s.subs[collection]...)
	s.mu.Unlock()

	for _, sub := range subs {
		snap, err := s.load(context.Background(), sub.ref)
		deliver(sub, snap, err)
	}
}

func (s *GormStore) changed(ctx context.Context, collection string) {
	s.Refresh(collection)
	if s.announcer == nil {
		return
	}
	if err := s.announcer.Announce(ctx, collection); err != nil {
		s.logger.Warn("announce change failed", zap.String("collection", collection), zap.Error(err))
	}
}

func (s *GormStore) load(ctx context.Context, ref Ref) (Snapshot, error) {
	q := s.db.WithContext(ctx).Where("namespace = ? AND collection = ?", s.namespace, ref.Collection)
	if ref.IsDoc() {
		q = q.Where("doc_id = ?", ref.ID)
	}

	var rows []database.Document
	if err := q.Order("doc_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	snap := make(Snapshot, 0, len(rows))
	for _, row := range rows {
		data := map[string]any{}
		if err := json.Unmarshal([]byte(row.Body), &data); err != nil {
			s.logger.Warn("skipping undecodable document",
				zap.String("collection", row.Collection), zap.String("doc_id", row.DocID), zap.Error(err))
			continue
		}
		snap = append(snap, Document{ID: row.DocID, Data: data})
	}
	return snap, nil
}
