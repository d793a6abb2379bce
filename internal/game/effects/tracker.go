package effects

import (
	"fmt"
	"sort"
	"sync"
)

// Type identifies the kind of timed effect.
type Type string

const (
	TypeExhaustion  Type = "EXHAUSTION"
	TypeEmpowerment Type = "PIECE_EMPOWERMENT"
	TypeDaylight    Type = "DAYLIGHT"
	TypeMark        Type = "PIECE_MARK"
	TypeGlueTrap    Type = "GLUE_TRAP"
	TypeMine        Type = "MINE"
)

// Target is an opaque identity compared only by equality.
type Target string

// PieceTarget targets a piece by id.
func PieceTarget(id string) Target { return Target("piece:" + id) }

// ColorTarget targets every piece of a color.
func ColorTarget(color string) Target { return Target("color:" + color) }

// SquareTarget targets a board square in algebraic notation.
func SquareTarget(square string) Target { return Target("square:" + square) }

// Effect is a single turn-bounded modifier.
type Effect struct {
	ID        string
	Type      Type
	StartTurn int
	Duration  int
	Target    Target
	Metadata  map[string]string
}

// IsExpired reports whether the effect has run its course at currentTurn.
func (e Effect) IsExpired(currentTurn int) bool {
	return currentTurn >= e.StartTurn+e.Duration
}

// TurnsRemaining returns how many turns are left, never negative.
func (e Effect) TurnsRemaining(currentTurn int) int {
	remaining := e.StartTurn + e.Duration - currentTurn
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Handler reacts to effects of one type. Either hook may be nil.
type Handler struct {
	Tick   func(effect Effect, currentTurn int)
	Expire func(effect Effect)
}

// View is the transport representation of a live effect.
type View struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Target         string            `json:"target"`
	TurnsRemaining int               `json:"turns_remaining"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Tracker is the registry of live effects for one match.
//
// Handlers are looked up by effect type when an effect ticks or expires, so an
// effect never holds a reference to the piece it modifies.
type Tracker struct {
	mu       sync.RWMutex
	effects  map[string]*Effect
	order    []string
	handlers map[Type]Handler
	nextID   int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		effects:  make(map[string]*Effect),
		order:    make([]string, 0),
		handlers: make(map[Type]Handler),
	}
}

// Handle installs the handler for an effect type, replacing any previous one.
func (t *Tracker) Handle(effectType Type, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[effectType] = handler
}

// Add registers a new effect and returns its id.
func (t *Tracker) Add(effectType Type, startTurn, duration int, target Target, metadata map[string]string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := fmt.Sprintf("%s_%d", effectType, t.nextID)
	t.nextID++

	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	t.effects[id] = &Effect{
		ID:        id,
		Type:      effectType,
		StartTurn: startTurn,
		Duration:  duration,
		Target:    target,
		Metadata:  md,
	}
	t.order = append(t.order, id)
	return id
}

// Remove deletes an effect without running its expiry handler.
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id)
}

func (t *Tracker) removeLocked(id string) bool {
	if _, ok := t.effects[id]; !ok {
		return false
	}
	delete(t.effects, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the effect with the given id.
func (t *Tracker) Get(id string) (Effect, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.effects[id]
	if !ok {
		return Effect{}, false
	}
	return *e, true
}

// ByType returns all live effects of a type in insertion order.
func (t *Tracker) ByType(effectType Type) []Effect {
	return t.filter(func(e *Effect) bool { return e.Type == effectType })
}

// ByTarget returns all live effects on a target in insertion order.
func (t *Tracker) ByTarget(target Target) []Effect {
	return t.filter(func(e *Effect) bool { return e.Target == target })
}

// Has reports whether target carries an effect of the given type.
func (t *Tracker) Has(effectType Type, target Target) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.effects {
		if e.Type == effectType && e.Target == target {
			return true
		}
	}
	return false
}

// Len returns the number of live effects.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.effects)
}

func (t *Tracker) filter(keep func(*Effect) bool) []Effect {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Effect, 0)
	for _, id := range t.order {
		if e := t.effects[id]; keep(e) {
			out = append(out, *e)
		}
	}
	return out
}

// ProcessTurn ticks every live effect and retires the expired ones.
//
// Tick handlers run first for every effect, then expiry handlers run exactly
// once for each effect that expired. Handlers run without the tracker lock
// held, so they may add or remove effects.
func (t *Tracker) ProcessTurn(currentTurn int) []Effect {
	t.mu.Lock()
	live := make([]Effect, 0, len(t.order))
	for _, id := range t.order {
		live = append(live, *t.effects[id])
	}
	handlers := make(map[Type]Handler, len(t.handlers))
	for k, v := range t.handlers {
		handlers[k] = v
	}
	t.mu.Unlock()

	for _, e := range live {
		if h, ok := handlers[e.Type]; ok && h.Tick != nil {
			h.Tick(e, currentTurn)
		}
	}

	expired := make([]Effect, 0)
	for _, e := range live {
		t.mu.Lock()
		current, ok := t.effects[e.ID]
		if !ok || !current.IsExpired(currentTurn) {
			t.mu.Unlock()
			continue
		}
		snapshot := *current
		t.removeLocked(e.ID)
		t.mu.Unlock()

		expired = append(expired, snapshot)
		if h, ok := handlers[snapshot.Type]; ok && h.Expire != nil {
			h.Expire(snapshot)
		}
	}
	return expired
}

// ModifyDuration changes the duration of a live effect in place.
func (t *Tracker) ModifyDuration(id string, duration int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.effects[id]
	if !ok {
		return false
	}
	e.Duration = duration
	return true
}

// Clear drops every effect without running handlers.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.effects = make(map[string]*Effect)
	t.order = t.order[:0]
}

// Views returns the transport view of all live effects, sorted by id.
func (t *Tracker) Views(currentTurn int) []View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]View, 0, len(t.effects))
	for _, e := range t.effects {
		views = append(views, View{
			ID:             e.ID,
			Type:           string(e.Type),
			Target:         string(e.Target),
			TurnsRemaining: e.TurnsRemaining(currentTurn),
			Metadata:       e.Metadata,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Clone copies every live effect into a new tracker. Handlers are not copied
// because they are bound to the board that installed them.
func (t *Tracker) Clone() *Tracker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cp := &Tracker{
		effects:  make(map[string]*Effect, len(t.effects)),
		order:    append([]string(nil), t.order...),
		handlers: make(map[Type]Handler),
		nextID:   t.nextID,
	}
	for id, e := range t.effects {
		dup := *e
		dup.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			dup.Metadata[k] = v
		}
		cp.effects[id] = &dup
	}
	return cp
}
