// Package media handles images sent inline as base64 data URLs.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds a decoded image so its data URL fits in one request.
const MaxImageBytes = 7 << 20

var (
	// ErrNotImage is returned when the content is not a recognised image.
	ErrNotImage = errors.New("not an image")
	// ErrTooLarge is returned for images above MaxImageBytes.
	ErrTooLarge = errors.New("image too large")
	// ErrMalformed is returned for data URLs that do not decode.
	ErrMalformed = errors.New("malformed data url")
)

// IsDataURL reports whether s carries inline content rather than a link.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DataURL encodes an image as a data URL, typed by its sniffed content.
func DataURL(data []byte) (string, error) {
	if len(data) > MaxImageBytes {
		return "", ErrTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ReadImage loads the image file at path as a data URL.
func ReadImage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxImageBytes {
		return "", ErrTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DataURL(data)
}

// Check validates an inline image: the payload must decode and its sniffed
// type must be an image matching the declared one.
func Check(dataURL string) error {
	header, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !IsDataURL(dataURL) || !ok || !strings.HasSuffix(header, ";base64") {
		return ErrMalformed
	}
	declared := strings.TrimSuffix(header, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ErrMalformed
	}
	if len(data) > MaxImageBytes {
		return ErrTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") || !mt.Is(declared) {
		return fmt.Errorf("%w: declared %s, got %s", ErrNotImage, declared, mt.String())
	}
	return nil
}
