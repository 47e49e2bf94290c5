package analysis

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestStage_SniffsMIMEType(t *testing.T) {
	data := encodePNG(t, 8, 8)

	staged, err := Stage(File{Name: "spot.png", Data: data})
	require.NoError(t, err)

	assert.Equal(t, "image/png", staged.MIMEType)
	assert.Equal(t, int64(len(data)), staged.SizeBytes)
	assert.Equal(t, data, staged.Data)
	assert.Equal(t, "spot.png", staged.Name)
}

func TestStage_PreviewIsBoundedThumbnail(t *testing.T) {
	staged, err := Stage(File{Name: "wide.png", Data: encodePNG(t, 1000, 400)})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(staged.PreviewDataURL, "data:image/jpeg;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(staged.PreviewDataURL, "data:image/jpeg;base64,"))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 320)
	assert.LessOrEqual(t, cfg.Height, 320)
}

func TestStage_UndecodablePreviewFallsBackToRawBytes(t *testing.T) {
	// Declared type wins, but the bytes are not decodable as an image.
	data := []byte("not really webp")

	staged, err := Stage(File{Name: "x.webp", MIMEType: "image/webp", Data: data})
	require.NoError(t, err)

	want := "data:image/webp;base64," + base64.StdEncoding.EncodeToString(data)
	assert.Equal(t, want, staged.PreviewDataURL)
}

func TestStage_RejectsDeclaredNonImage(t *testing.T) {
	_, err := Stage(File{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("hello")})
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "File must be an image", vErr.Reason)
}

func TestStage_RejectsSniffedNonImage(t *testing.T) {
	_, err := Stage(File{Name: "blob", Data: []byte("plain text, nothing image-like here")})
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "File must be an image", vErr.Reason)
}

func TestStage_RejectsOversize(t *testing.T) {
	data := make([]byte, MaxImageBytes+1)

	_, err := Stage(File{Name: "huge.jpg", MIMEType: "image/jpeg", Data: data})
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "Image too large (max 10MB)", vErr.Reason)
}

func TestStage_AcceptsExactlyMaxSize(t *testing.T) {
	data := make([]byte, MaxImageBytes)

	staged, err := Stage(File{Name: "max.jpg", MIMEType: "image/jpeg", Data: data})
	require.NoError(t, err)
	assert.Equal(t, int64(MaxImageBytes), staged.SizeBytes)
}
