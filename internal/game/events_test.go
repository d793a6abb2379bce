package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusSubscribeAndUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	var all, moves []EventType

	h := bus.Subscribe(func(e Event) { all = append(all, e.Type) })
	bus.SubscribeTyped(EventMoveMade, func(e Event) { moves = append(moves, e.Type) })
	assert.Equal(t, -1, bus.Subscribe(nil))

	bus.Publish(Event{Type: EventMoveMade})
	bus.Publish(Event{Type: EventCardPlayed})
	bus.Unsubscribe(h)
	bus.Publish(Event{Type: EventMoveMade})

	assert.Equal(t, []EventType{EventMoveMade, EventCardPlayed}, all)
	assert.Equal(t, []EventType{EventMoveMade, EventMoveMade}, moves)
}

func TestMatchPublishesEvents(t *testing.T) {
	clock := newFakeClock()
	bus := NewEventBus()
	var events []Event
	bus.Subscribe(func(e Event) { events = append(events, e) })

	g := newTestGame(t, clock, WithEventBus(bus))
	require.NoError(t, g.ApplyMove("alice", move("e2", "e4")))
	require.NoError(t, g.ApplyMove("bob", move("d7", "d5")))
	require.NoError(t, g.ApplyMove("alice", move("e4", "d5")))
	require.NoError(t, g.Resign("bob"))

	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
		assert.Equal(t, g.ID(), e.GameID)
	}
	assert.Equal(t, []EventType{
		EventMoveMade, EventMoveMade, EventMoveMade, EventPieceCaptured, EventGameOver,
	}, types)
	assert.Equal(t, "d5", events[3].Square)
	assert.Equal(t, "alice", events[4].PlayerID)
	assert.Equal(t, "Black resigned", events[4].Detail)
}

func TestManagerCountsEvents(t *testing.T) {
	m := newTestManager(t, newFakeClock())
	g, err := m.CreateSampleGame("alice", "bob")
	require.NoError(t, err)

	_, err = m.MakeMove(g.ID(), "alice", "e2", "e4", "")
	require.NoError(t, err)
	_, err = m.MakeMove(g.ID(), "bob", "d7", "d5", "")
	require.NoError(t, err)
	_, err = m.MakeMove(g.ID(), "alice", "e4", "d5", "")
	require.NoError(t, err)

	stats := m.GetStats()
	assert.Equal(t, 3, stats.MovesPlayed)
	assert.Equal(t, 1, stats.Captures)
	assert.Equal(t, 0, stats.CardsPlayed)
}
