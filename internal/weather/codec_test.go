package weather

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePayload(t *testing.T) {
	fields, err := DecodePayload([]byte(`{"HIGH":"75","LOW":"60","TIME":"14:00"}`))
	require.NoError(t, err)
	assert.Equal(t, Fields{High: "75", Low: "60", Time: "14:00"}, fields)
}

func TestDecodePayloadNumbers(t *testing.T) {
	fields, err := DecodePayload([]byte(`{"HIGH":21.5,"LOW":-3,"TIME":"1465000000"}`))
	require.NoError(t, err)
	assert.Equal(t, "21.5", fields.High)
	assert.Equal(t, "-3", fields.Low)
}

func TestDecodePayloadIgnoresExtraKeys(t *testing.T) {
	fields, err := DecodePayload([]byte(`{"HIGH":"1","LOW":"2","TIME":"3","CITY":"Paris"}`))
	require.NoError(t, err)
	assert.Equal(t, "3", fields.Time)
}

func TestDecodePayloadMalformed(t *testing.T) {
	cases := map[string]string{
		"missing low":   `{"HIGH":"75","TIME":"14:00"}`,
		"null value":    `{"HIGH":"75","LOW":null,"TIME":"14:00"}`,
		"nested object": `{"HIGH":"75","LOW":{"v":1},"TIME":"14:00"}`,
		"boolean":       `{"HIGH":true,"LOW":"60","TIME":"14:00"}`,
		"array":         `["75","60"]`,
		"null document": `null`,
		"not json":      `HIGH=75;LOW=60`,
		"truncated":     `{"HIGH":"75","LOW":"60",`,
		"empty":         ``,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			fields, err := DecodePayload([]byte(raw))
			require.ErrorIs(t, err, ErrMalformedStructure)
			assert.Equal(t, Fields{}, fields)
		})
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(pngBytes(t, 4, 3))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestDecodeImageUnsupported(t *testing.T) {
	for name, b := range map[string][]byte{
		"empty":     nil,
		"text":      []byte("definitely not an image"),
		"truncated": pngBytes(t, 4, 4)[:20],
	} {
		t.Run(name, func(t *testing.T) {
			img, err := DecodeImage(b)
			require.ErrorIs(t, err, ErrUnsupportedImage)
			assert.Nil(t, img)
		})
	}
}

func TestEncodePayloadIsDecodable(t *testing.T) {
	fields := Fields{High: "25°", Low: "16°", Time: "14:00"}
	raw, err := EncodePayload(fields)
	require.NoError(t, err)

	decoded, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, fields, decoded)
}
