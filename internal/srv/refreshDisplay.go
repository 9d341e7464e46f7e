package srv

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/images"
	"github.com/jitinsharma/sunshine-wear/internal/srv/device"
	"github.com/jitinsharma/sunshine-wear/internal/srv/displaymode"
	"github.com/jitinsharma/sunshine-wear/internal/weather"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const syncPlaceholder = "Sync with phone"

const iconSize = 16

type faceText struct {
	Clock string
	Date  string
	High  string
	Low   string
	// no weather was ever received
	Placeholder bool
}

// faceTexts formats H:MM in ambient mode or H:MM:SS in interactive mode
func faceTexts(snapshot *weather.Snapshot, mode displaymode.Mode, now time.Time) faceText {
	text := faceText{
		Clock: fmt.Sprintf("%d:%02d", now.Hour(), now.Minute()),
		Date:  now.Format("Mon, Jan 02 2006"),
	}
	if mode == displaymode.Interactive {
		text.Clock += fmt.Sprintf(":%02d", now.Second())
	}
	if snapshot == nil {
		text.Placeholder = true
	} else {
		text.High = snapshot.High()
		text.Low = snapshot.Low()
	}
	return text
}

// renderFace draws the watch face, it only reads the snapshot
func renderFace(snapshot *weather.Snapshot, params displaymode.Params, now time.Time, inverted bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, device.DisplayWidth, device.DisplayHeight))
	text := faceTexts(snapshot, params.Mode, now)
	scaler := scalerFor(params.AntiAlias)

	var fg, bg color.Color = white, black
	if params.Mode == displaymode.Interactive && inverted {
		fg, bg = black, white
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if params.Mode == displaymode.Ambient {
		AddScaledLabel(img, 20, text.Clock, 2, fg, scaler)
		return img
	}

	AddScaledLabel(img, 0, text.Clock, 2, fg, scaler)
	AddCenteredLabel(img, 36, text.Date, fg)

	if text.Placeholder {
		AddGlyph(img, image.Pt(4, 44), images.SyncImage, fg)
		AddLabel(img, 24, 58, syncPlaceholder, fg)
		return img
	}

	if icon := snapshot.Icon(); icon != nil {
		AddImage(img, image.Pt(8, 44), icon, iconSize, scaler)
	}
	x := 32
	AddGlyph(img, image.Pt(x, 49), images.UpImage, fg)
	AddLabel(img, x+9, 58, text.High, fg)
	x += 9 + labelWidth(text.High) + 8
	AddGlyph(img, image.Pt(x, 49), images.DownImage, fg)
	AddLabel(img, x+9, 58, text.Low, fg)
	return img
}

func (s *ServerApp) refreshDisplay() {
	params := s.machine.Params()
	snapshot := s.syncChannel.Latest()
	now := time.Now().In(s.Location())

	logrus.Debugf("Display %s face", params.Mode)
	s.displayDevice.ShowImage(renderFace(snapshot, params, now, s.InvertedBackground()))
}

func (s *ServerApp) showEndScreen() {
	img := image.NewRGBA(image.Rect(0, 0, device.DisplayWidth, device.DisplayHeight))
	AddCenteredLabel(img, 38, "See you!", white)
	s.displayDevice.ShowImage(img)
}
