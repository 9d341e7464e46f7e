package device

import (
	"testing"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/stretchr/testify/assert"
)

func TestButtonPressSteps(t *testing.T) {
	events := make(chan event.ButtonEvent, 10)
	button := &Button{buttonId: event.TAP_BUTTON}
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	button.update(true, start, events)
	// within the same step
	button.update(true, start.Add(100*time.Millisecond), events)
	button.update(true, start.Add(200*time.Millisecond), events)
	button.update(false, start.Add(250*time.Millisecond), events)

	close(events)
	var received []event.ButtonEvent
	for ev := range events {
		received = append(received, ev)
	}

	assert.Equal(t, []event.ButtonEvent{
		{ButtonId: event.TAP_BUTTON, ButtonEventType: event.PRESS_EVENT_TYPE, PressStepCount: 1},
		{ButtonId: event.TAP_BUTTON, ButtonEventType: event.PRESS_EVENT_TYPE, PressStepCount: 2},
		{ButtonId: event.TAP_BUTTON, ButtonEventType: event.RELEASE_EVENT_TYPE, PressStepCount: 2},
	}, received)
	assert.Zero(t, button.pressStepCount)
}
