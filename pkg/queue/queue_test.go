package queue

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecospheres/isomorphe/pkg/channels/gochannel"
	"github.com/ecospheres/isomorphe/pkg/eventbus"
	"github.com/ecospheres/isomorphe/pkg/events"
)

func TestAnnouncePublishesQueuedEvent(t *testing.T) {
	pub, sub := gochannel.CreateTestChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.JobQueued, 1)

	bus.Handle(events.JobQueuedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.JobQueued)

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	q := &Queue{bus: bus}
	q.announce(ctx, Job{ID: "job-1", Kind: JobTransform, EnqueuedAt: time.Now().UTC()})

	select {
	case got := <-received:
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, string(JobTransform), got.JobKind)
		assert.Equal(t, events.JobQueuedEvent, got.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("queued event was not delivered")
	}
}

func TestAnnounceWithoutBusIsNoop(t *testing.T) {
	q := &Queue{}

	q.announce(context.Background(), Job{ID: "job-1", Kind: JobTransform})
}
