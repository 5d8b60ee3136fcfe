package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wikindex/internal/entry"
)

func page(name, author string) *entry.Entry {
	return entry.NewPage(entry.NewKey("w1", "Space", name, "en"),
		entry.Meta{Author: author}, entry.PagePayload{Content: name})
}

func names(entries []*entry.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key().Name + "@" + e.Meta().Author
	}
	return out
}

func TestQueue_FIFO(t *testing.T) {
	// Given: three entries enqueued in order
	q := New()
	q.Enqueue(page("A", "x"))
	q.Enqueue(page("B", "x"))
	q.Enqueue(page("C", "x"))

	// When: draining
	got := q.DequeueAll()

	// Then: order is preserved and the queue is empty
	assert.Equal(t, []string{"A@x", "B@x", "C@x"}, names(got))
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_NilIgnored(t *testing.T) {
	q := New()
	q.Enqueue(nil)
	q.EnqueueAll([]*entry.Entry{nil, page("A", "x")})
	assert.Equal(t, 1, q.Len())
}

func TestQueue_DedupNoneKeepsDuplicates(t *testing.T) {
	q := New()
	q.Enqueue(page("A", "alice"))
	q.Enqueue(page("A", "bob"))

	assert.Equal(t, []string{"A@alice", "A@bob"}, names(q.DequeueAll()))
}

func TestQueue_DedupKeepLast(t *testing.T) {
	// Given: a keep-last queue with a repeated key
	q := New(WithDedup(DedupKeepLast))
	q.Enqueue(page("A", "alice"))
	q.Enqueue(page("B", "x"))
	q.Enqueue(page("A", "bob"))
	q.Enqueue(page("C", "x"))

	// When: draining
	got := q.DequeueAll()

	// Then: only the last A survives, at its own position
	assert.Equal(t, []string{"B@x", "A@bob", "C@x"}, names(got))
}

func TestQueue_RequeueGoesToFront(t *testing.T) {
	// Given: a drained batch and a later arrival
	q := New()
	q.Enqueue(page("A", "x"))
	q.Enqueue(page("B", "x"))
	batch := q.DequeueAll()
	q.Enqueue(page("C", "x"))

	// When: the batch is requeued
	q.Requeue(batch)

	// Then: it precedes the later arrival in original order
	assert.Equal(t, []string{"A@x", "B@x", "C@x"}, names(q.DequeueAll()))
}

func TestQueue_WaitReturnsWhenNonEmpty(t *testing.T) {
	q := New()
	done := make(chan error, 1)
	go func() { done <- q.Wait(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(page("A", "x"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Enqueue")
	}
}

func TestQueue_WaitHonoursContext(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	// Given: many producers
	q := New()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Enqueue(page("P", "x"))
			}
		}()
	}

	// And: a consumer draining meanwhile
	total := 0
	stop := make(chan struct{})
	consumed := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-stop:
				consumed <- n + len(q.DequeueAll())
				return
			default:
				n += len(q.DequeueAll())
			}
		}
	}()

	wg.Wait()
	close(stop)
	total = <-consumed

	// Then: nothing is lost
	assert.Equal(t, producers*each, total)
	require.GreaterOrEqual(t, q.Len(), 0)
}

func TestQueue_DepthObserver(t *testing.T) {
	var depths []int
	q := New(WithDepthObserver(func(n int) { depths = append(depths, n) }))

	q.Enqueue(page("A", "x"))
	q.Enqueue(page("B", "x"))
	q.DequeueAll()

	assert.Equal(t, []int{1, 2, 0}, depths)
}

func TestParseDedupPolicy(t *testing.T) {
	assert.Equal(t, DedupKeepLast, ParseDedupPolicy("keep_last"))
	assert.Equal(t, DedupNone, ParseDedupPolicy("none"))
	assert.Equal(t, DedupNone, ParseDedupPolicy(""))
}
