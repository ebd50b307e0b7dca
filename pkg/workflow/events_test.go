package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokerFanOutToAllSubscribers(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe(1)
	c := b.Subscribe(1)

	b.Publish(Event{SessionID: "s1", Kind: EventSessionCreated})

	assert.Equal(t, EventSessionCreated, (<-a).Kind)
	assert.Equal(t, EventSessionCreated, (<-c).Kind)
}

func TestBrokerDropsOnFullSubscriberBuffer(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(1)

	b.Publish(Event{Kind: EventSessionCreated})
	b.Publish(Event{Kind: EventProgressUpdate}) // dropped: buffer already full

	assert.Equal(t, EventSessionCreated, (<-ch).Kind)
	select {
	case <-ch:
		t.Fatal("expected no second event")
	default:
	}
}
