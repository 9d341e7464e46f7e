package srv

import (
	"testing"

	"github.com/jitinsharma/sunshine-wear/internal/srv/config"
	"github.com/jitinsharma/sunshine-wear/internal/srv/displaymode"
	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleScheduler struct{}

func (idleScheduler) Start() {}
func (idleScheduler) Stop()  {}

type idleHost struct{}

func (idleHost) RegisterTimezoneListener()   {}
func (idleHost) UnregisterTimezoneListener() {}
func (idleHost) ApplyTimezone(string)        {}
func (idleHost) Invalidate()                 {}
func (idleHost) SetVisible(bool)             {}
func (idleHost) Tapped()                     {}

// newVisibleApp returns an app whose face is visible and interactive, without ambient timer
func newVisibleApp(t *testing.T) *ServerApp {
	app := &ServerApp{
		ServerConfig: &config.ServerConfig{ServerParam: &config.ServerParam{}},
		machine:      displaymode.NewMachine(idleScheduler{}, idleHost{}),
		stopping:     make(chan struct{}),
	}
	app.machine.Handle(event.PlatformEvent{Data: event.VisibilityData{Visible: true}})
	require.Equal(t, displaymode.VisibleInteractive, app.machine.Status().State)
	return app
}

func ambientTimeout(generation uint64) event.InternalEvent {
	return event.InternalEvent{Data: event.InternalEventAmbientTimeoutData{Generation: generation}}
}

func TestAmbientTimeoutEntersAmbient(t *testing.T) {
	app := newVisibleApp(t)
	app.resetAmbientTimer()

	app.handleInternalEvent(ambientTimeout(app.ambientGeneration))
	assert.Equal(t, displaymode.VisibleAmbient, app.machine.Status().State)
}

func TestAmbientTimeoutFromResetTimerIsIgnored(t *testing.T) {
	app := newVisibleApp(t)
	app.resetAmbientTimer()
	fired := app.ambientGeneration

	// a tap resets the timer while the previous timeout is waiting for the loop
	app.handleButton(event.ButtonEvent{ButtonId: event.TAP_BUTTON, ButtonEventType: event.RELEASE_EVENT_TYPE})
	require.NotEqual(t, fired, app.ambientGeneration)

	app.handleInternalEvent(ambientTimeout(fired))
	assert.Equal(t, displaymode.VisibleInteractive, app.machine.Status().State)
}

func TestAmbientTimeoutWhileHidden(t *testing.T) {
	app := newVisibleApp(t)
	app.machine.Handle(event.PlatformEvent{Data: event.VisibilityData{Visible: false}})

	app.handleInternalEvent(ambientTimeout(app.ambientGeneration))
	assert.Equal(t, displaymode.Hidden, app.machine.Status().State)
	assert.Equal(t, displaymode.Interactive, app.machine.Status().Mode)
}
