//go:build !amd64

package device

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// pngWindow stands for the simulation window on boards without a desktop:
// every frame overwrites a PNG file that can be opened remotely.
type pngWindow struct {
	path string
}

func newSimulationWindow() simulationWindow {
	path := filepath.Join(os.TempDir(), "sunshinewear-frame.png")
	logrus.Infof("No simulation window on this architecture, frames are written to %s", path)
	return &pngWindow{path: path}
}

func (w *pngWindow) Show(img image.Image) {
	if img == nil {
		// powered off
		img = image.NewGray(image.Rect(0, 0, DisplayWidth, DisplayHeight))
	}
	if err := writePng(w.path, img); err != nil {
		logrus.Warnf("Unable to write frame: %v", err)
	}
}

func (w *pngWindow) Close() {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		logrus.Debugf("Unable to remove %s: %v", w.path, err)
	}
}

// writePng replaces the file at once so readers never see a partial frame
func writePng(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*.png")
	if err != nil {
		return err
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
