package events

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingHandler struct {
	types  []string
	events []Event
	err    error
}

func (h *recordingHandler) Handles() []string { return h.types }

func (h *recordingHandler) Handle(event Event) error {
	h.events = append(h.events, event)
	return h.err
}

func TestBus_PublishDispatchesToRegisteredHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	handler := &recordingHandler{types: []string{MemberLinkedType}}
	bus.Register(handler)

	event := NewMemberLinkedEvent(uuid.New(), uuid.New())
	bus.Publish(event)

	assert.Len(t, handler.events, 1)
	assert.Equal(t, event, handler.events[0])
}

func TestBus_PublishSkipsUnrelatedHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	handler := &recordingHandler{types: []string{"SomethingElse"}}
	bus.Register(handler)

	bus.Publish(NewMemberLinkedEvent(uuid.New(), uuid.New()))

	assert.Empty(t, handler.events)
}

func TestBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	failing := &recordingHandler{types: []string{MemberLinkedType}, err: errors.New("boom")}
	second := &recordingHandler{types: []string{MemberLinkedType}}
	bus.Register(failing)
	bus.Register(second)

	bus.Publish(NewMemberLinkedEvent(uuid.New(), uuid.New()))

	assert.Len(t, failing.events, 1)
	assert.Len(t, second.events, 1)
}
