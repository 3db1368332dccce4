package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(16)

	ch, cancel := h.Subscribe("requests")
	defer cancel()

	h.Publish("requests", []byte(`{"hello":1}`))
	h.Publish("responses", []byte(`ignored`))

	select {
	case msg := <-ch:
		assert.Equal(t, "requests", msg.Topic)
		assert.Equal(t, []byte(`{"hello":1}`), msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	// Nothing from the other topic should arrive.
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message on topic %q", msg.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub(8)
	ch, cancel := h.Subscribe("t")
	cancel()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after cancel")

	// Publishing after cancel must not panic.
	h.Publish("t", []byte("x"))
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	h := NewHub(8)
	_, cancel := h.Subscribe("t")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// More than the subscriber buffer; must not block.
		for i := 0; i < 1000; i++ {
			h.Publish("t", []byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestSnapshotSince(t *testing.T) {
	h := NewHub(8)

	for i := 0; i < 3; i++ {
		h.Publish("a", []byte{byte(i)})
		h.Publish("b", []byte{byte(i)})
	}

	all := h.SnapshotSince("a", 0)
	require.Len(t, all, 3)

	later := h.SnapshotSince("a", all[0].ID)
	assert.Len(t, later, 2)
	for _, msg := range later {
		assert.Equal(t, "a", msg.Topic)
	}
}

func TestConcurrentPublish(t *testing.T) {
	h := NewHub(64)
	ch, cancel := h.Subscribe("t")
	defer cancel()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Publish("t", fmt.Appendf(nil, "m%d", i))
		}(i)
	}
	wg.Wait()

	seen := 0
	for seen < n {
		select {
		case <-ch:
			seen++
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d messages delivered", seen, n)
		}
	}
}
