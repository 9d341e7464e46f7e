package device

import (
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// Size of the SSD1306 panel
const (
	DisplayWidth  = 128
	DisplayHeight = 64
)

// simulationWindow shows the panel content when no panel is attached.
// Show receives nil while the panel is off.
type simulationWindow interface {
	Show(img image.Image)
	Close()
}

type Display struct {
	oledLock    sync.Mutex
	oledDisplay *ssd1306.Dev
	i2cBus      i2c.BusCloser

	lock           sync.RWMutex
	on             bool
	simulationMode bool
	contrast       uint8
	lastImg        image.Image

	simulation simulationWindow

	askDone chan bool
	frames  chan image.Image
	done    chan bool
}

func NewDisplay(simulationMode bool, contrast uint8) *Display {
	if !simulationMode {
		if _, err := host.Init(); err != nil {
			logrus.Fatalf("Unable to initialize periph host: %v", err)
		}
	}

	return &Display{
		simulationMode: simulationMode,
		contrast:       contrast,
		askDone:        make(chan bool),
		frames:         make(chan image.Image, 1),
		done:           make(chan bool),
	}
}

func (d *Display) Start() {
	logrus.Infof("Start display device")

	d.lock.Lock()
	d.on = true
	d.lock.Unlock()

	if d.simulationMode {
		d.lock.Lock()
		d.simulation = newSimulationWindow()
		d.simulation.Show(d.frame())
		d.lock.Unlock()
		return
	}

	var err error
	// Open a handle to the first available I²C bus:
	d.i2cBus, err = i2creg.Open("")
	if err != nil {
		logrus.Fatalf("Unable to open i2c bus: %v\n", err)
	}

	// Open a handle to a ssd1306 connected on the I²C bus:
	d.oledDisplay, err = ssd1306.NewI2C(d.i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		logrus.Fatalf("Unable to initialize oled display: %v\n", err)
	}
	d.oledDisplay.SetContrast(d.contrast)

	go func() {
		for loop := true; loop; {
			select {
			case <-d.askDone:
				loop = false
			case frame := <-d.frames:
				d.oledLock.Lock()
				if err := d.oledDisplay.Draw(d.oledDisplay.Bounds(), frame, image.Point{}); err != nil {
					logrus.Warnf("Unable to draw frame: %v", err)
				}
				d.oledLock.Unlock()
			}
		}
		d.oledLock.Lock()
		d.i2cBus.Close()
		d.oledLock.Unlock()
		d.done <- true
	}()
}

func (d *Display) Stop() {
	logrus.Infof("Stop display device")

	if d.simulationMode {
		d.simulation.Close()
	} else {
		d.askDone <- true
		<-d.done
	}
}

// SetVisible powers the panel on or off
func (d *Display) SetVisible(visible bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if visible == d.on {
		return
	}
	d.on = visible
	if d.simulationMode {
		d.simulation.Show(d.frame())
		return
	}

	d.oledLock.Lock()
	if visible {
		// Hack to force display on (calling Draw() is not enough)
		d.oledDisplay.SetContrast(d.contrast)
	} else {
		d.oledDisplay.Halt()
	}
	d.oledLock.Unlock()
	if visible && d.lastImg != nil {
		d.push(d.lastImg)
	}
}

func (d *Display) IsOn() bool {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.on
}

// frame returns the image the panel shows, nil while it is off. lock must be held.
func (d *Display) frame() image.Image {
	if !d.on {
		return nil
	}
	return d.lastImg
}

func (d *Display) ShowImage(img image.Image) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.lastImg = img
	if !d.on {
		return
	}
	if d.simulationMode {
		d.simulation.Show(d.frame())
	} else {
		d.push(img)
	}
}

// push replaces a frame the panel has not drawn yet, it never blocks the caller
func (d *Display) push(img image.Image) {
	select {
	case <-d.frames:
	default:
	}
	select {
	case d.frames <- img:
	default:
	}
}
