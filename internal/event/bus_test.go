package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/object"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	planID := object.ID("a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90")
	bus.PublishNew(TypePlanUpdated, planID)

	select {
	case ev := <-ch:
		assert.Equal(t, TypePlanUpdated, ev.Type)
		assert.Equal(t, planID, ev.PlanID)
		assert.NotEmpty(t, ev.ID)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	planID := object.ID("a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90")
	bus.PublishNew(TypePlanUpdated, planID)
	bus.PublishNew(TypePlanUpdated, planID)

	require.Len(t, ch, 1)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
}
