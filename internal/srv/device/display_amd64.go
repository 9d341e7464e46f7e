package device

import (
	"image"
	"image/color"
	"sync"

	"gioui.org/app"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"github.com/sirupsen/logrus"
)

// gioWindow mirrors the panel in a desktop window twice its size
type gioWindow struct {
	window *app.Window

	lock  sync.Mutex
	frame image.Image
}

func newSimulationWindow() simulationWindow {
	w := &gioWindow{
		window: app.NewWindow(
			app.Title("sunshinewear"),
			app.Size(unit.Px(2*DisplayWidth), unit.Px(2*DisplayHeight)),
			app.MinSize(unit.Px(DisplayWidth), unit.Px(DisplayHeight)),
		),
	}
	go func() {
		if err := w.loop(); err != nil {
			logrus.Fatalf("Simulation window: %v", err)
		}
	}()
	go app.Main()
	return w
}

func (w *gioWindow) Show(img image.Image) {
	w.lock.Lock()
	w.frame = img
	w.lock.Unlock()
	w.window.Invalidate()
}

func (w *gioWindow) Close() {
	w.window.Close()
}

func (w *gioWindow) loop() error {
	var ops op.Ops
	for {
		e := <-w.window.Events()
		switch e := e.(type) {
		case system.DestroyEvent:
			return e.Err
		case system.FrameEvent:
			gtx := layout.NewContext(&ops, e)

			w.lock.Lock()
			frame := w.frame
			w.lock.Unlock()

			// a powered off panel is black
			paint.Fill(gtx.Ops, color.NRGBA{A: 255})
			if frame != nil {
				img := widget.Image{Src: paint.NewImageOp(frame), Fit: widget.Contain}
				img.Layout(gtx)
			}
			e.Frame(gtx.Ops)
		}
	}
}
