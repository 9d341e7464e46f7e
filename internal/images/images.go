package images

import (
	"bytes"
	_ "embed"
	"image"
	_ "image/png"

	"github.com/sirupsen/logrus"
)

//go:embed intro.png
var IntroImgFile []byte

var IntroImage image.Image

//go:embed sync.png
var SyncImgFile []byte

var SyncImage image.Image

//go:embed up.png
var UpImgFile []byte

var UpImage image.Image

//go:embed down.png
var DownImgFile []byte

var DownImage image.Image

func init() {
	// Load images
	IntroImage = mustDecode("intro", IntroImgFile)
	SyncImage = mustDecode("sync", SyncImgFile)
	UpImage = mustDecode("up", UpImgFile)
	DownImage = mustDecode("down", DownImgFile)
}

func mustDecode(name string, b []byte) image.Image {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		logrus.Panicf("Can't load %s image: %v", name, err)
	}
	return img
}
