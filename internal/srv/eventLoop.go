package srv

import (
	"syscall"

	"github.com/jitinsharma/sunshine-wear/internal/srv/displaymode"
	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/sirupsen/logrus"
)

func (s *ServerApp) eventLoop() {
	var apiEventChannel chan event.ApiEvent
	if s.apiDevice != nil {
		apiEventChannel = s.apiDevice.EventChannel()
	}

	for loop := true; loop; {
		select {
		case <-s.renderTicks:
			s.refreshDisplay()
		case ev := <-s.internalEventChannel:
			s.handleInternalEvent(ev)
		case ev := <-s.clockDevice.EventChannel():
			logrus.Debugf("Receive clock event %T", ev.Data)
			s.machine.Handle(ev)
		case ev := <-apiEventChannel:
			switch data := ev.Data.(type) {
			case event.ApiEventPlatformData:
				logrus.Debugf("Receive api event %T", data.Event.Data)
				s.machine.Handle(data.Event)
				s.onInteraction(data.Event)
				ev.Result <- nil
			}
		case ev := <-s.buttonsDevice.EventChannel():
			logrus.Debugf("Receive button event: %d, %d, %d", ev.ButtonId, ev.ButtonEventType, ev.PressStepCount)
			s.handleButton(ev)
		case <-s.eventLoopAskDone:
			loop = false
		}
		s.redrawIfInvalidated()
	}
	s.eventLoopDone <- true
}

func (s *ServerApp) handleInternalEvent(ev event.InternalEvent) {
	switch data := ev.Data.(type) {
	case event.InternalEventAmbientTimeoutData:
		if data.Generation != s.ambientGeneration {
			logrus.Debugf("Ignore stale ambient timeout")
			return
		}
		status := s.machine.Status()
		if status.Visible && status.Mode == displaymode.Interactive {
			logrus.Debugf("No interaction, enter ambient mode")
			s.machine.Handle(event.PlatformEvent{Data: event.AmbientModeData{Ambient: true}})
		}
	}
}

// onInteraction postpones the switch to ambient mode
func (s *ServerApp) onInteraction(ev event.PlatformEvent) {
	switch ev.Data.(type) {
	case event.VisibilityData, event.AmbientModeData, event.TapData:
		s.resetAmbientTimer()
	}
}

func (s *ServerApp) handleButton(ev event.ButtonEvent) {
	status := s.machine.Status()

	var platformEvent *event.PlatformEvent
	switch ev.ButtonId {
	case event.SCREEN_BUTTON:
		if ev.ButtonEventType == event.RELEASE_EVENT_TYPE && ev.PressStepCount < 20 {
			logrus.Debugf("Switch display on/off")
			platformEvent = &event.PlatformEvent{Data: event.VisibilityData{Visible: !status.Visible}}
		} else if ev.ButtonEventType == event.PRESS_EVENT_TYPE && ev.PressStepCount == 20 {
			logrus.Debugf("See you!")
			syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
		}
	case event.AMBIENT_BUTTON:
		if ev.ButtonEventType == event.RELEASE_EVENT_TYPE {
			logrus.Debugf("Switch ambient mode")
			platformEvent = &event.PlatformEvent{Data: event.AmbientModeData{Ambient: status.Mode == displaymode.Interactive}}
		}
	case event.TAP_BUTTON:
		if ev.ButtonEventType == event.RELEASE_EVENT_TYPE {
			if status.Mode == displaymode.Ambient {
				// a tap wakes the face up
				platformEvent = &event.PlatformEvent{Data: event.AmbientModeData{Ambient: false}}
			} else {
				platformEvent = &event.PlatformEvent{Data: event.TapData{}}
			}
		}
	}

	if platformEvent != nil {
		s.machine.Handle(*platformEvent)
		s.onInteraction(*platformEvent)
	}
}
