package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrMalformedStructure = errors.New("malformed structure")
	ErrUnsupportedImage   = errors.New("unsupported image")
)

// Payload keys sent by the companion device
const (
	HighKey = "HIGH"
	LowKey  = "LOW"
	TimeKey = "TIME"
)

// Fields holds the textual part of a weather payload
type Fields struct {
	High string
	Low  string
	Time string
}

// DecodePayload parses a structured text payload.
// Either every field is decoded or an error wrapping ErrMalformedStructure is returned.
func DecodePayload(raw []byte) (Fields, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrMalformedStructure, err)
	}
	if record == nil {
		return Fields{}, fmt.Errorf("%w: not an object", ErrMalformedStructure)
	}

	var fields Fields
	for _, f := range []struct {
		key string
		dst *string
	}{
		{HighKey, &fields.High},
		{LowKey, &fields.Low},
		{TimeKey, &fields.Time},
	} {
		value, err := stringValue(record, f.key)
		if err != nil {
			return Fields{}, err
		}
		*f.dst = value
	}

	return fields, nil
}

// stringValue accepts JSON strings and JSON numbers, numbers keep their literal form
func stringValue(record map[string]json.RawMessage, key string) (string, error) {
	raw, ok := record[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedStructure, key)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedStructure, key, err)
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%w: %q is not a string", ErrMalformedStructure, key)
	}
}

// DecodeImage decodes a raster icon (png, jpeg, gif, bmp or webp)
func DecodeImage(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty stream", ErrUnsupportedImage)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// EncodePayload builds the payload the companion device sends
func EncodePayload(fields Fields) ([]byte, error) {
	return json.Marshal(map[string]string{
		HighKey: fields.High,
		LowKey:  fields.Low,
		TimeKey: fields.Time,
	})
}
