package displaymode

import (
	"sync"

	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/sirupsen/logrus"
)

type Mode int

const (
	Interactive Mode = iota
	Ambient
)

func (m Mode) String() string {
	if m == Ambient {
		return "ambient"
	}
	return "interactive"
}

type State int

const (
	Hidden State = iota
	VisibleInteractive
	VisibleAmbient
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case VisibleInteractive:
		return "visible_interactive"
	case VisibleAmbient:
		return "visible_ambient"
	}
	return "unknown"
}

type Scheduler interface {
	Start()
	Stop()
}

// Host receives the side effects of the transitions
type Host interface {
	RegisterTimezoneListener()
	UnregisterTimezoneListener()
	// ApplyTimezone switches the rendered time zone, "" means the system default
	ApplyTimezone(tzId string)
	Invalidate()
	SetVisible(visible bool)
	Tapped()
}

type Status struct {
	State         State
	Mode          Mode
	Visible       bool
	AntiAlias     bool
	LowBitAmbient bool
}

// Params are the rendering parameters of the current mode
type Params struct {
	Mode      Mode
	AntiAlias bool
}

// Machine keeps the render scheduler running iff the face is visible and interactive
type Machine struct {
	lock      sync.Mutex
	scheduler Scheduler
	host      Host

	state         State
	mode          Mode
	visible       bool
	lowBitAmbient bool
	registered    bool
}

func NewMachine(scheduler Scheduler, host Host) *Machine {
	return &Machine{
		scheduler: scheduler,
		host:      host,
		state:     Hidden,
		mode:      Interactive,
	}
}

func (m *Machine) Handle(ev event.PlatformEvent) {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch data := ev.Data.(type) {
	case event.VisibilityData:
		m.onVisibilityChanged(data.Visible)
	case event.AmbientModeData:
		m.onAmbientModeChanged(data.Ambient)
	case event.TimeTickData:
		if m.visible {
			m.host.Invalidate()
		}
	case event.TimezoneData:
		if m.registered {
			logrus.Infof("Timezone changed to %s", data.TzId)
			m.host.ApplyTimezone(data.TzId)
			if m.visible {
				m.host.Invalidate()
			}
		} else {
			logrus.Debugf("Ignore timezone %s, listener not registered", data.TzId)
		}
	case event.PropertiesData:
		m.lowBitAmbient = data.LowBitAmbient
		logrus.Debugf("Low bit ambient: %t", data.LowBitAmbient)
	case event.TapData:
		if m.state == VisibleInteractive {
			m.host.Tapped()
			m.host.Invalidate()
		}
	default:
		logrus.Warnf("Unknown platform event %T", ev.Data)
	}
}

func (m *Machine) onVisibilityChanged(visible bool) {
	m.visible = visible
	if visible {
		m.register()
		m.host.ApplyTimezone("")
		m.host.SetVisible(true)
		if m.mode == Interactive {
			m.setState(VisibleInteractive)
			m.scheduler.Start()
		} else {
			m.setState(VisibleAmbient)
			m.scheduler.Stop()
		}
		m.host.Invalidate()
	} else {
		m.setState(Hidden)
		m.scheduler.Stop()
		m.unregister()
		m.host.SetVisible(false)
	}
}

func (m *Machine) onAmbientModeChanged(ambient bool) {
	if ambient {
		m.mode = Ambient
	} else {
		m.mode = Interactive
	}
	if !m.visible {
		return
	}
	if ambient {
		m.setState(VisibleAmbient)
		m.scheduler.Stop()
	} else {
		m.setState(VisibleInteractive)
		m.scheduler.Start()
	}
	m.host.Invalidate()
}

// Shutdown leaves the machine hidden with the scheduler stopped and the listener unregistered
func (m *Machine) Shutdown() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.visible = false
	m.setState(Hidden)
	m.scheduler.Stop()
	m.unregister()
}

func (m *Machine) Status() Status {
	m.lock.Lock()
	defer m.lock.Unlock()
	return Status{
		State:         m.state,
		Mode:          m.mode,
		Visible:       m.visible,
		AntiAlias:     m.antiAlias(),
		LowBitAmbient: m.lowBitAmbient,
	}
}

func (m *Machine) Params() Params {
	m.lock.Lock()
	defer m.lock.Unlock()
	return Params{Mode: m.mode, AntiAlias: m.antiAlias()}
}

// low bit displays get no anti-aliasing while ambient
func (m *Machine) antiAlias() bool {
	return !(m.mode == Ambient && m.lowBitAmbient)
}

func (m *Machine) setState(state State) {
	if m.state != state {
		logrus.Debugf("Display mode: %s -> %s", m.state, state)
		m.state = state
	}
}

func (m *Machine) register() {
	if m.registered {
		return
	}
	m.registered = true
	m.host.RegisterTimezoneListener()
}

func (m *Machine) unregister() {
	if !m.registered {
		return
	}
	m.registered = false
	m.host.UnregisterTimezoneListener()
}
