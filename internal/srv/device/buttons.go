package device

import (
	"sync"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const pressStepDuration = 160 * time.Millisecond

// GPIO wiring of the buttons
var buttonPins = map[event.ButtonId]string{
	event.SCREEN_BUTTON:  "GPIO25",
	event.AMBIENT_BUTTON: "GPIO24",
	event.TAP_BUTTON:     "GPIO23",
}

type Button struct {
	buttonId       event.ButtonId
	pin            gpio.PinIO
	isPressed      bool
	pressStepCount int64
	lastChange     time.Time
}

func NewButton(buttonId event.ButtonId, name string) *Button {
	button := Button{buttonId: buttonId, pin: gpioreg.ByName(name)}

	if button.pin == nil {
		logrus.Fatalf("Failed to find %s button", name)
	}

	// Set it as input, with an internal pull up resistor:
	if err := button.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		logrus.Fatalf("Failed to setup %s button: %v", name, err)
	}
	return &button
}

func (b *Button) Refresh(buttonEventChannel chan event.ButtonEvent) {
	b.update(bool(!b.pin.Read()), time.Now(), buttonEventChannel)
}

// update emits a press event every pressStepDuration while held and a release event with the step count
func (b *Button) update(pressed bool, now time.Time, buttonEventChannel chan event.ButtonEvent) {
	wasPressed := b.isPressed
	b.isPressed = pressed

	if !b.isPressed && wasPressed {
		b.lastChange = now
		buttonEventChannel <- event.ButtonEvent{ButtonId: b.buttonId, ButtonEventType: event.RELEASE_EVENT_TYPE, PressStepCount: b.pressStepCount}
		b.pressStepCount = 0
	} else if b.isPressed && b.lastChange.Add(pressStepDuration).Before(now) {
		b.lastChange = now
		b.pressStepCount++
		buttonEventChannel <- event.ButtonEvent{ButtonId: b.buttonId, ButtonEventType: event.PRESS_EVENT_TYPE, PressStepCount: b.pressStepCount}
	}
}

type Buttons struct {
	lock         sync.RWMutex
	eventChannel chan event.ButtonEvent
	simulation   bool

	buttons []*Button

	checkTicker *time.Ticker

	askDone chan bool
	done    chan bool
}

func NewButtons(simulation bool) *Buttons {
	if !simulation {
		if _, err := host.Init(); err != nil {
			logrus.Fatalf("Unable to initialize periph host: %v", err)
		}
	}

	return &Buttons{
		eventChannel: make(chan event.ButtonEvent),
		simulation:   simulation,
		askDone:      make(chan bool),
		done:         make(chan bool),
	}
}

func (d *Buttons) Start() {
	logrus.Infof("Start buttons device")

	d.lock.Lock()
	defer d.lock.Unlock()

	if !d.simulation {
		for _, buttonId := range []event.ButtonId{event.SCREEN_BUTTON, event.AMBIENT_BUTTON, event.TAP_BUTTON} {
			d.buttons = append(d.buttons, NewButton(buttonId, buttonPins[buttonId]))
		}
	}

	// Start periodic check
	d.checkTicker = time.NewTicker(5 * time.Millisecond)
	go func() {
		for loop := true; loop; {
			select {
			case <-d.checkTicker.C:
				for _, button := range d.buttons {
					button.Refresh(d.eventChannel)
				}
			case <-d.askDone:
				loop = false
			}
		}
		d.done <- true
	}()
}

func (d *Buttons) StopSendingEvent() {
	logrus.Infof("Stop buttons device")

	d.lock.Lock()
	defer d.lock.Unlock()

	d.checkTicker.Stop()
	d.askDone <- true
	<-d.done
}

func (d *Buttons) EventChannel() chan event.ButtonEvent {
	return d.eventChannel
}
