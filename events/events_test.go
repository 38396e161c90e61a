package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDeliversToAllHandlersInOrder(t *testing.T) {
	b := New(nil)
	var order []int
	b.On(SessionConnected, func(any) { order = append(order, 1) })
	b.On(SessionConnected, func(any) { order = append(order, 2) })

	b.Emit(SessionConnected, nil)

	assert.Equal(t, []int{1, 2}, order)
}

func TestEmitToUnregisteredNameIsNoOp(t *testing.T) {
	b := New(nil)
	assert.NotPanics(t, func() { b.Emit(RequestSent, "msg-1") })
}

func TestPanickingObserverIsRecoveredAndReemittedAsError(t *testing.T) {
	b := New(nil)
	var gotErr error
	b.On(Error, func(p any) {
		if err, ok := p.(error); ok {
			gotErr = err
		}
	})
	b.On(SignRequest, func(any) { panic("boom") })

	assert.NotPanics(t, func() { b.Emit(SignRequest, nil) })
	assert.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "boom")
}

func TestPanickingErrorObserverDoesNotRecurse(t *testing.T) {
	b := New(nil)
	b.On(Error, func(any) { panic("error handler itself panics") })

	assert.NotPanics(t, func() { b.Emit(Error, assert.AnError) })
}
