package imageapi

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeImage_Formats(t *testing.T) {
	pngPayload := encodePNG(t, 5, 7)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))
	jpegPayload := base64.StdEncoding.EncodeToString(jpg.Bytes())

	tests := []struct {
		name    string
		payload string
		w, h    int
	}{
		{"png", pngPayload, 5, 7},
		{"jpeg", jpegPayload, 8, 8},
		{"data url", "data:image/png;base64," + pngPayload, 5, 7},
		{"unpadded", base64.RawStdEncoding.EncodeToString(mustDecode(t, pngPayload)), 5, 7},
		{"surrounding whitespace", "\n " + pngPayload + " \n", 5, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeImage(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.w, got.Bounds().Dx())
			assert.Equal(t, tt.h, got.Bounds().Dy())
		})
	}
}

func TestDecodeImage_Malformed(t *testing.T) {
	for _, payload := range []string{"", "   ", "!!!not base64!!!", base64.StdEncoding.EncodeToString([]byte("plain text"))} {
		_, err := DecodeImage(payload)
		assert.Error(t, err, "payload %q", payload)
	}
}

func TestDecodeImages_NoPartialResults(t *testing.T) {
	good := encodePNG(t, 1, 1)

	images, err := DecodeImages([]Frame{{Img: good}, {Img: good}})
	require.NoError(t, err)
	assert.Len(t, images, 2)

	images, err = DecodeImages([]Frame{{Img: good}, {Img: "AAAA"}, {Img: good}})
	require.ErrorIs(t, err, ErrDecode)
	assert.Nil(t, images)
	assert.Contains(t, err.Error(), "decode image 1")

	images, err = DecodeImages(nil)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestJobStatusProgress(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		want   Progress
		ok     bool
	}{
		{"no frames", JobStatus{}, Progress{}, false},
		{"zero total", JobStatus{Response: []Frame{{Step: 3}}}, Progress{}, false},
		{"first frame wins", JobStatus{Response: []Frame{{Step: 3, Total: 10}, {Step: 9, Total: 10}}}, Progress{Step: 3, Total: 10}, true},
		{"clamped", JobStatus{Response: []Frame{{Step: 12, Total: 10}}}, Progress{Step: 10, Total: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.status.Progress()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProgressRatioAndString(t *testing.T) {
	p := Progress{Step: 25, Total: 200}
	assert.InDelta(t, 0.125, p.Ratio(), 1e-9)
	assert.Equal(t, "25/200 (12.5%)", p.String())
	assert.Zero(t, Progress{}.Ratio())
	assert.Equal(t, 1.0, Progress{Step: 5, Total: 2}.Ratio())
}

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}
