package tasks

import (
	"context"
	"strings"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"go.uber.org/zap"
)

// Palette is the rotation of task colors.
var Palette = []string{"indigo", "emerald", "amber", "rose", "cyan", "fuchsia", "orange", "lime"}

// OrphanColor is used for task names that are no longer in the catalog.
const OrphanColor = "gray"

// List is an ordered set of unique task names.
type List []string

// Index returns the position of name, or -1.
func (l List) Index(name string) int {
	for i, t := range l {
		if t == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is in the list.
func (l List) Contains(name string) bool {
	return l.Index(name) >= 0
}

// Add returns a new list with the trimmed name appended.
func (l List) Add(name string) (List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrEmptyName
	}
	if l.Contains(name) {
		return nil, apperr.ErrDuplicateName.WithMessage("task %q already exists", name)
	}
	out := make(List, 0, len(l)+1)
	out = append(out, l...)
	return append(out, name), nil
}

// Remove returns a new list without name.
func (l List) Remove(name string) (List, error) {
	i := l.Index(name)
	if i < 0 {
		return nil, apperr.ErrTaskNotFound.WithMessage("task %q not found", name)
	}
	out := make(List, 0, len(l)-1)
	out = append(out, l[:i]...)
	return append(out, l[i+1:]...), nil
}

// Color derives the display color from the current position. Positions
// shift after a removal, and so do the colors of later tasks.
func (l List) Color(name string) string {
	i := l.Index(name)
	if i < 0 {
		return OrphanColor
	}
	return Palette[i%len(Palette)]
}

// NextSelection returns what should be selected after removed was deleted
// from list: the current selection if it survived, else the first entry.
func NextSelection(list List, removed, selected string) string {
	if selected != removed && list.Contains(selected) {
		return selected
	}
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// Catalog keeps a List synchronised with the settings/tasks document.
type Catalog struct {
	docs   docstore.Store
	seed   List
	logger *zap.Logger

	mu     sync.RWMutex
	list   List
	err    error
	loaded bool
	unsub  docstore.Unsubscribe
}

// NewCatalog creates a catalog that falls back to seed while no list has been stored.
func NewCatalog(docs docstore.Store, seed []string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		docs:   docs,
		seed:   append(List(nil), seed...),
		logger: logger,
		list:   append(List(nil), seed...),
	}
}

// Start subscribes to the stored list.
func (c *Catalog) Start() {
	unsub := c.docs.Subscribe(docstore.Doc(docstore.CollectionSettings, docstore.TasksDocID), c.onSnapshot, c.onError)
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()
}

// Close ends the subscription.
func (c *Catalog) Close() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *Catalog) onSnapshot(snap docstore.Snapshot) {
	list := c.seed
	if doc, ok := snap.Get(docstore.TasksDocID); ok {
		var body struct {
			List []string `json:"list"`
		}
		if err := docstore.Decode(doc.Data, &body); err != nil {
			c.logger.Warn("ignoring malformed task list", zap.Error(err))
		} else if body.List != nil {
			list = body.List
		}
	}

	c.mu.Lock()
	c.list = append(List(nil), list...)
	c.err = nil
	c.loaded = true
	c.mu.Unlock()
}

func (c *Catalog) onError(err error) {
	c.logger.Error("task catalog subscription failed", zap.Error(err))
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// List returns a copy of the current list.
func (c *Catalog) List() List {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(List(nil), c.list...)
}

// Err returns the last subscription failure.
func (c *Catalog) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Loaded reports whether the stored list has been received at least once.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Color is List.Color over the current list.
func (c *Catalog) Color(name string) string {
	return c.List().Color(name)
}

// Add appends a task and stores the new list.
func (c *Catalog) Add(ctx context.Context, name string) error {
	next, err := c.List().Add(name)
	if err != nil {
		return err
	}
	return c.store(ctx, next)
}

// Remove deletes a task and stores the new list. Assignments that reference
// the removed name are left untouched.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	next, err := c.List().Remove(name)
	if err != nil {
		return err
	}
	return c.store(ctx, next)
}

func (c *Catalog) store(ctx context.Context, list List) error {
	items := make([]any, len(list))
	for i, t := range list {
		items[i] = t
	}
	return c.docs.Write(ctx, docstore.Doc(docstore.CollectionSettings, docstore.TasksDocID), map[string]any{"list": items})
}
