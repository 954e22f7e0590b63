// Package events is an explicit in-process change-event bus. Write paths
// publish entity lifecycle events; the dispatcher reacts by scheduling index
// maintenance. Handlers defer their side effects to transaction commit so an
// aborted write never reaches the index.
package events

import (
	"sort"
	"sync"
)

// Kind is the lifecycle moment an event describes.
type Kind int

const (
	BeforeSave Kind = iota
	AfterSave
	AfterDelete
)

// Event is one entity lifecycle notification. SiteID is set for site-scoped
// entities. RootTag and RootID are set on events for dependent rows and name
// the root entity whose document they feed.
type Event struct {
	Entity  string
	Kind    Kind
	ID      string
	SiteID  string
	RootTag string
	RootID  string
	Payload any
}

// Handler reacts to one event. Side effects that must survive only a
// committed write go through tx.OnCommit.
type Handler func(tx *Tx, ev Event)

type busKey struct {
	entity string
	kind   Kind
}

// Bus routes events to connected handlers. Connections are explicit and
// reversible; nothing is wired at package init.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[busKey]map[int]Handler
	tokens   map[int]busKey
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[busKey]map[int]Handler),
		tokens:   make(map[int]busKey),
	}
}

// Connect registers a handler for one entity and kind and returns a token
// for Disconnect.
func (b *Bus) Connect(entity string, kind Kind, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	key := busKey{entity, kind}
	if b.handlers[key] == nil {
		b.handlers[key] = make(map[int]Handler)
	}
	b.handlers[key][b.nextID] = h
	b.tokens[b.nextID] = key
	return b.nextID
}

// Disconnect removes a previously connected handler. Unknown tokens are
// ignored.
func (b *Bus) Disconnect(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.tokens[token]
	if !ok {
		return
	}
	delete(b.tokens, token)
	delete(b.handlers[key], token)
}

// Publish delivers an event to every handler connected for its entity and
// kind, in connection order.
func (b *Bus) Publish(tx *Tx, ev Event) {
	b.mu.RLock()
	byToken := b.handlers[busKey{ev.Entity, ev.Kind}]
	tokens := make([]int, 0, len(byToken))
	for t := range byToken {
		tokens = append(tokens, t)
	}
	sort.Ints(tokens)
	handlers := make([]Handler, 0, len(tokens))
	for _, t := range tokens {
		handlers = append(handlers, byToken[t])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(tx, ev)
	}
}

// Tx is a logical write transaction as seen by the bus: a queue of side
// effects released only on commit. It does not manage the database
// transaction itself.
type Tx struct {
	mu       sync.Mutex
	done     bool
	onCommit []func()
}

// Begin opens a new logical transaction.
func (b *Bus) Begin() *Tx {
	return &Tx{}
}

// OnCommit queues a side effect to run at commit. Effects queued after
// Commit or Rollback are dropped.
func (t *Tx) OnCommit(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.onCommit = append(t.onCommit, f)
}

// Commit runs queued side effects in order.
func (t *Tx) Commit() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	effects := t.onCommit
	t.onCommit = nil
	t.mu.Unlock()

	for _, f := range effects {
		f()
	}
}

// Rollback discards queued side effects.
func (t *Tx) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.onCommit = nil
}
