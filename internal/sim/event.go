package sim

import (
	"container/heap"
	"time"
)

// EventKind represents the type of a simulation event
type EventKind string

const (
	EventDeparture   EventKind = "departure"
	EventArrival     EventKind = "arrival"
	EventIncident    EventKind = "incident"
	EventMaintenance EventKind = "maintenance"
)

// Event is a timestamped instruction that mutates world state when drained
type Event struct {
	Time       time.Time
	Kind       EventKind
	ScheduleID int64
	TrainID    int64
	TrackID    int64

	seq uint64
}

// EventQueue is a priority queue of pending events ordered by
// (due time, insertion sequence). The sequence tie-break keeps events due
// at the same instant in the order they were scheduled, which the engine
// relies on for deterministic replay.
type EventQueue struct {
	items   eventHeap
	nextSeq uint64
}

// NewEventQueue returns an empty event queue
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push schedules an event. Events inserted mid-run are visible to
// subsequent DrainDue calls.
func (q *EventQueue) Push(ev Event) {
	ev.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.items, ev)
}

// Len returns the number of pending events
func (q *EventQueue) Len() int {
	return q.items.Len()
}

// DrainDue removes and returns all events with due time <= now, in
// processing order.
func (q *EventQueue) DrainDue(now time.Time) []Event {
	var due []Event
	for q.items.Len() > 0 && !q.items[0].Time.After(now) {
		due = append(due, heap.Pop(&q.items).(Event))
	}
	return due
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if !h[i].Time.Equal(h[j].Time) {
		return h[i].Time.Before(h[j].Time)
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}
