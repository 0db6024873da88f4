package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_DeliversEntries(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "audit.entries")
	require.NoError(t, err)

	p := NewPublisher(pubSub, "audit.entries", 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	p.Record(context.Background(), Entry{
		ActorID:      "user-1",
		Action:       ActionBookingCreated,
		ResourceType: ResourceBooking,
		ResourceID:   "booking-1",
		Details:      map[string]any{"quantity": 2},
	})

	select {
	case msg := <-messages:
		var got Entry
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		msg.Ack()

		assert.NotEmpty(t, got.ID)
		assert.Equal(t, got.ID, msg.UUID)
		assert.Equal(t, ActionBookingCreated, got.Action)
		assert.Equal(t, ActionBookingCreated, msg.Metadata.Get("action"))
		assert.Equal(t, "booking-1", got.ResourceID)
		assert.False(t, got.OccurredAt.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("audit entry was not delivered")
	}

	cancel()
	<-done
}

func TestPublisher_RecordNeverBlocks(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	// Run is never started, so the buffer fills up and further entries are dropped.
	p := NewPublisher(pubSub, "audit.entries", 2)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Record(context.Background(), Entry{Action: ActionBookingCreated})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full buffer")
	}
	assert.Len(t, p.entries, 2)
}

type fakeInserter struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (f *fakeInserter) Insert(_ context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func TestStoreHandler(t *testing.T) {
	t.Run("stores valid entries", func(t *testing.T) {
		store := &fakeInserter{}
		payload, err := json.Marshal(Entry{ID: "a1", Action: ActionBookingCancelled, ResourceType: ResourceBooking, ResourceID: "b1"})
		require.NoError(t, err)

		err = StoreHandler(store)(message.NewMessage("a1", payload))
		require.NoError(t, err)
		require.Len(t, store.entries, 1)
		assert.Equal(t, "a1", store.entries[0].ID)
		assert.NotNil(t, store.entries[0].Details)
	})

	t.Run("skips malformed payloads", func(t *testing.T) {
		store := &fakeInserter{}
		err := StoreHandler(store)(message.NewMessage("x", []byte("{not json")))
		require.NoError(t, err)
		assert.Empty(t, store.entries)
	})

	t.Run("returns storage errors for retry", func(t *testing.T) {
		store := &fakeInserter{err: errors.New("db down")}
		payload, err := json.Marshal(Entry{ID: "a2"})
		require.NoError(t, err)

		err = StoreHandler(store)(message.NewMessage("a2", payload))
		assert.Error(t, err)
	})
}

func TestOriginAddress(t *testing.T) {
	assert.Empty(t, OriginAddress(context.Background()))
	ctx := WithOriginAddress(context.Background(), "203.0.113.7")
	assert.Equal(t, "203.0.113.7", OriginAddress(ctx))
}
