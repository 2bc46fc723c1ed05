package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderCanTransitionTo(t *testing.T) {
	order := &Order{Status: OrderStatusSubmitted}
	assert.True(t, order.CanTransitionTo(OrderStatusPending))
	assert.True(t, order.CanTransitionTo(OrderStatusFilled))
	assert.True(t, order.CanTransitionTo(OrderStatusUnknown))

	order.Status = OrderStatusPending
	assert.True(t, order.CanTransitionTo(OrderStatusPartialFilled))
	assert.False(t, order.CanTransitionTo(OrderStatusSubmitted))
}

func TestOrderTerminalStatesNeverTransition(t *testing.T) {
	for _, status := range []string{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected} {
		order := &Order{Status: status}
		assert.True(t, order.IsTerminal(), status)
		for _, next := range []string{OrderStatusPending, OrderStatusFilled, OrderStatusCancelled, OrderStatusUnknown} {
			assert.False(t, order.CanTransitionTo(next), "%s -> %s", status, next)
		}
	}
}

func TestOrderUnknownRecoversToAnyState(t *testing.T) {
	order := &Order{Status: OrderStatusUnknown}
	assert.True(t, order.IsActive())
	assert.True(t, order.CanTransitionTo(OrderStatusFilled))
	assert.True(t, order.CanTransitionTo(OrderStatusRejected))
	assert.True(t, order.CanTransitionTo(OrderStatusCancelled))
}

func TestOrderPartialFilledCanRemainPartial(t *testing.T) {
	order := &Order{Status: OrderStatusPartialFilled}
	assert.True(t, order.CanTransitionTo(OrderStatusPartialFilled))
	assert.False(t, order.CanTransitionTo(OrderStatusRejected))
}

func TestOrderFillRate(t *testing.T) {
	order := &Order{Quantity: 100, FilledQuantity: 25}
	assert.InDelta(t, 0.25, order.FillRate(), 1e-9)

	empty := &Order{}
	assert.Equal(t, 0.0, empty.FillRate())
}
