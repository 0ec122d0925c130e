package imageapi

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var errEmptyImage = errors.New("image has no pixels")

// DecodeImages decodes every frame of a finished job. Any failure aborts the
// whole batch; partial results are never returned.
func DecodeImages(frames []Frame) ([]image.Image, error) {
	images := make([]image.Image, 0, len(frames))
	for i, f := range frames {
		img, err := DecodeImage(f.Img)
		if err != nil {
			return nil, &DecodeError{Index: i, Err: err}
		}
		images = append(images, img)
	}
	return images, nil
}

// DecodeImage turns a base64 payload (optionally a data: URL) into an image.
func DecodeImage(encoded string) (image.Image, error) {
	data, err := decodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errEmptyImage
	}
	return img, nil
}

func decodeBase64(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	if s == "" {
		return nil, errors.New("empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
