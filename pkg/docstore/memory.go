package docstore

import (
	"context"
	"sync"
)

type subscriber struct {
	id       int
	ref      Ref
	onUpdate UpdateFunc
	onError  ErrorFunc
}

// Memory is an in-process Store. Subscribers are notified synchronously,
// after the write has been applied and the lock released.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]map[string]map[string]any
	subs   map[string][]*subscriber
	fail   map[string]error
	nextID int

	delivery deliveryLocks
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]map[string]any),
		subs: make(map[string][]*subscriber),
		fail: make(map[string]error),
	}
}

// Subscribe implements Store.
func (m *Memory) Subscribe(ref Ref, onUpdate UpdateFunc, onError ErrorFunc) Unsubscribe {
	unlock := m.delivery.lock(ref.Collection)
	m.mu.Lock()
	m.nextID++
	sub := &subscriber{id: m.nextID, ref: ref, onUpdate: onUpdate, onError: onError}
	m.subs[ref.Collection] = append(m.subs[ref.Collection], sub)
	snap, err := m.snapshotLocked(ref)
	m.mu.Unlock()

	deliver(sub, snap, err)
	unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(sub) })
	}
}

// Write implements Store.
func (m *Memory) Write(ctx context.Context, ref Ref, patch map[string]any) error {
	if err := validateRef(ref, true); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.fail[ref.Collection]; err != nil {
		m.mu.Unlock()
		return Classify(err)
	}
	coll := m.docs[ref.Collection]
	if coll == nil {
		coll = make(map[string]map[string]any)
		m.docs[ref.Collection] = coll
	}
	coll[ref.ID] = Merge(coll[ref.ID], clone(patch))
	m.mu.Unlock()

	m.notify(ref.Collection)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, ref Ref) error {
	if err := validateRef(ref, true); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.fail[ref.Collection]; err != nil {
		m.mu.Unlock()
		return Classify(err)
	}
	delete(m.docs[ref.Collection], ref.ID)
	m.mu.Unlock()

	m.notify(ref.Collection)
	return nil
}

// Fail makes every subsequent write to collection return err and pushes err
// to its subscribers. A nil err restores normal operation.
func (m *Memory) Fail(collection string, err error) {
	m.mu.Lock()
	if err == nil {
		delete(m.fail, collection)
	} else {
		m.fail[collection] = err
	}
	m.mu.Unlock()

	m.notify(collection)
}

func (m *Memory) notify(collection string) {
	defer m.delivery.lock(collection)()

	m.mu.RLock()
	subs := append([]*subscriber(nil), m.subs[collection]...)
	type pending struct {
		sub  *subscriber
		snap Snapshot
		err  error
	}
	out := make([]pending, 0, len(subs))
	for _, sub := range subs {
		snap, err := m.snapshotLocked(sub.ref)
		out = append(out, pending{sub, snap, err})
	}
	m.mu.RUnlock()

	for _, d := range out {
		deliver(d.sub, d.snap, d.err)
	}
}

func (m *Memory) snapshotLocked(ref Ref) (Snapshot, error) {
	if err := m.fail[ref.Collection]; err != nil {
		return nil, err
	}
	coll := m.docs[ref.Collection]
	if ref.IsDoc() {
		data, ok := coll[ref.ID]
		if !ok {
			return Snapshot{}, nil
		}
		return Snapshot{{ID: ref.ID, Data: clone(data)}}, nil
	}
	snap := make(Snapshot, 0, len(coll))
	for id, data := range coll {
		snap = append(snap, Document{ID: id, Data: clone(data)})
	}
	sortSnapshot(snap)
	return snap, nil
}

func (m *Memory) remove(sub *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[sub.ref.Collection]
	for i, s := range subs {
		if s.id == sub.id {
			m.subs[sub.ref.Collection] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func deliver(sub *subscriber, snap Snapshot, err error) {
	if err != nil {
		if sub.onError != nil {
			sub.onError(Classify(err))
		}
		return
	}
	if sub.onUpdate != nil {
		sub.onUpdate(snap)
	}
}
