package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Message is one delivery on a topic.
type Message struct {
	ID      int64     `json:"id"`
	Topic   string    `json:"topic"`
	At      time.Time `json:"at"`
	Payload []byte    `json:"payload"`
}

// Hub is an in-memory topic pub/sub with a small ring buffer for late clients.
// It stands in for the message broker: delivery is at-most-once and slow
// subscribers never block publishers.
type Hub struct {
	nextID atomic.Int64

	mu    sync.Mutex
	ring  []Message
	start int
	size  int

	subs      map[int]*subscription
	nextSubID int
}

type subscription struct {
	topic string
	ch    chan Message
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Message, capacity),
		subs: make(map[int]*subscription),
	}
}

// Publish delivers payload to every subscriber of topic. The payload is not
// copied; callers must not mutate it after publishing.
func (h *Hub) Publish(topic string, payload []byte) {
	id := h.nextID.Add(1)

	msg := Message{
		ID:      id,
		Topic:   topic,
		At:      time.Now().UTC(),
		Payload: payload,
	}

	h.mu.Lock()
	h.pushLocked(msg)
	for _, sub := range h.subs {
		if sub.topic != topic {
			continue
		}
		// Don't let slow clients block producers.
		select {
		case sub.ch <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe registers interest in a topic. The returned cancel func must be
// called exactly once; after it returns the channel is closed.
func (h *Hub) Subscribe(topic string) (<-chan Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Message, 128)
	h.subs[id] = &subscription{topic: topic, ch: ch}

	cancel := func() {
		h.mu.Lock()
		if s, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(s.ch)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered messages on topic with ID > lastID,
// oldest-first. If lastID is 0, the full buffered history for the topic is
// returned.
func (h *Hub) SnapshotSince(topic string, lastID int64) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Message, 0, h.size)
	for i := 0; i < h.size; i++ {
		msg := h.ring[(h.start+i)%len(h.ring)]
		if msg.Topic != topic {
			continue
		}
		if lastID == 0 || msg.ID > lastID {
			out = append(out, msg)
		}
	}
	return out
}

func (h *Hub) pushLocked(msg Message) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = msg
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = msg
	h.start = (h.start + 1) % capacity
}
