package srv

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/bitmapfont/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var white = color.RGBA{255, 255, 255, 255}
var black = color.RGBA{0, 0, 0, 255}

func labelWidth(label string) int {
	return font.MeasureString(bitmapfont.Face, label).Ceil()
}

// AddLabel draws label with its baseline at y
func AddLabel(img draw.Image, x, y int, label string, fg color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: bitmapfont.Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func AddCenteredLabel(img draw.Image, y int, label string, fg color.Color) {
	AddLabel(img, (img.Bounds().Dx()-labelWidth(label))/2, y, label, fg)
}

// AddScaledLabel draws label magnified scale times, centered, its top at y
func AddScaledLabel(img draw.Image, y int, label string, scale int, fg color.Color, scaler draw.Scaler) {
	metrics := bitmapfont.Face.Metrics()
	small := image.NewRGBA(image.Rect(0, 0, labelWidth(label), metrics.Height.Ceil()))
	AddLabel(small, 0, metrics.Ascent.Ceil(), label, fg)

	width := small.Bounds().Dx() * scale
	x := (img.Bounds().Dx() - width) / 2
	target := image.Rect(x, y, x+width, y+small.Bounds().Dy()*scale)
	scaler.Scale(img, target, small, small.Bounds(), draw.Over, nil)
}

// AddImage fits src into the size x size square at position
func AddImage(img draw.Image, position image.Point, src image.Image, size int, scaler draw.Scaler) {
	scaler.Scale(img, image.Rect(0, 0, size, size).Add(position), src, src.Bounds(), draw.Over, nil)
}

// scalerFor maps the anti-aliasing rendering parameter to an image scaler
func scalerFor(antiAlias bool) draw.Scaler {
	if antiAlias {
		return draw.ApproxBiLinear
	}
	return draw.NearestNeighbor
}

// AddGlyph paints fg through the alpha of mask
func AddGlyph(img draw.Image, position image.Point, mask image.Image, fg color.Color) {
	bounds := mask.Bounds()
	draw.DrawMask(img, bounds.Sub(bounds.Min).Add(position), image.NewUniform(fg), image.Point{}, mask, bounds.Min, draw.Over)
}
