// Package docstore is the key-document synchronisation layer the grid is
// built on. Collections hold documents addressed by id; writers send
// merge-patches and readers only ever observe pushed snapshots.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
)

// Collection names used by the application.
const (
	CollectionAuth         = "auth"
	CollectionAvailability = "availability"
	CollectionAssignments  = "assignments"
	CollectionSettings     = "settings"
)

// TasksDocID is the settings document holding the task catalog.
const TasksDocID = "tasks"

// Ref points at a whole collection (empty ID) or a single document.
type Ref struct {
	Collection string
	ID         string
}

// Doc is a shorthand for a document reference.
func Doc(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

// Collection is a shorthand for a collection reference.
func Collection(name string) Ref {
	return Ref{Collection: name}
}

// IsDoc reports whether the ref addresses a single document.
func (r Ref) IsDoc() bool {
	return r.ID != ""
}

// Document is one stored record.
type Document struct {
	ID   string
	Data map[string]any
}

// Snapshot is the full current content of a subscribed ref, ordered by id.
type Snapshot []Document

// Get returns the document with the given id.
func (s Snapshot) Get(id string) (Document, bool) {
	for _, d := range s {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// UpdateFunc receives every pushed snapshot.
type UpdateFunc func(Snapshot)

// ErrorFunc receives collaborator failures for a subscription.
type ErrorFunc func(error)

// Unsubscribe ends a subscription. Calling it twice is harmless.
type Unsubscribe func()

// Store is the synchronisation collaborator.
type Store interface {
	// Subscribe pushes the current snapshot of ref immediately and again after
	// every change to its collection.
	Subscribe(ref Ref, onUpdate UpdateFunc, onError ErrorFunc) Unsubscribe
	// Write merges patch into the document, creating it if needed.
	Write(ctx context.Context, ref Ref, patch map[string]any) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, ref Ref) error
}

// Decode converts document data into v.
func Decode(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Merge overwrites the fields of base present in patch and returns a new map.
func Merge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func clone(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch vv := v.(type) {
		case []any:
			out[k] = append([]any(nil), vv...)
		case []string:
			out[k] = append([]string(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}

func sortSnapshot(s Snapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}

// deliveryLocks serializes snapshot delivery per collection so that a
// subscriber never receives an older snapshot after a newer one.
type deliveryLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (d *deliveryLocks) lock(collection string) func() {
	d.mu.Lock()
	if d.locks == nil {
		d.locks = make(map[string]*sync.Mutex)
	}
	l, ok := d.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		d.locks[collection] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func validateRef(ref Ref, needDoc bool) error {
	if ref.Collection == "" {
		return apperr.ErrValidation.WithMessage("document reference has no collection")
	}
	if needDoc && ref.ID == "" {
		return apperr.ErrValidation.WithMessage("document reference in %q has no id", ref.Collection)
	}
	return nil
}

// Classify maps raw backend errors onto the fatal taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"database is locked", "database table is locked", "sqlite_busy", "could not serialize access", "deadlock detected"} {
		if strings.Contains(msg, marker) {
			return apperr.ErrBusy.Wrap(err)
		}
	}
	for _, marker := range []string{"permission denied", "permission_denied", "insufficient permissions", "readonly", "read-only", "not authorized", "access denied"} {
		if strings.Contains(msg, marker) {
			return apperr.ErrPermission.Wrap(err)
		}
	}
	return apperr.ErrConfiguration.Wrap(err)
}
