package game

import (
	"sync"
	"time"
)

// EventType names something that happened in a match.
type EventType string

const (
	EventMoveMade        EventType = "MOVE_MADE"
	EventPieceCaptured   EventType = "PIECE_CAPTURED"
	EventCardPlayed      EventType = "CARD_PLAYED"
	EventPromoted        EventType = "PROMOTED"
	EventEnthrallStarted EventType = "ENTHRALL_STARTED"
	EventPieceEnthralled EventType = "PIECE_ENTHRALLED"
	EventDarkLordDied    EventType = "DARKLORD_DIED"
	EventGameOver        EventType = "GAME_OVER"
)

// Event is a state change other subsystems may react to.
type Event struct {
	Type      EventType
	GameID    string
	PlayerID  string
	PieceID   string
	Square    string
	CardID    string
	Detail    string
	Timestamp time.Time
}

// Listener reacts to an event. Listeners run synchronously with the match
// lock held and must not call back into the match.
type Listener func(Event)

type typedListener struct {
	handle   int
	callback Listener
}

// EventBus is a synchronous publish/subscribe hub with type filtering. It is
// shared by every match of a Manager.
type EventBus struct {
	mu         sync.RWMutex
	listeners  map[int]Listener
	typed      map[EventType][]typedListener
	nextHandle int
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[int]Listener),
		typed:     make(map[EventType][]typedListener),
	}
}

// Subscribe registers a listener for every event and returns its handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for one event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typed[eventType] = append(bus.typed[eventType], typedListener{handle: handle, callback: listener})
	return handle
}

// Unsubscribe removes the listener with handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typed {
		for i := range listeners {
			if listeners[i].handle == handle {
				bus.typed[eventType] = append(listeners[:i:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to every matching listener.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typed[event.Type] {
		listener.callback(event)
	}
}
