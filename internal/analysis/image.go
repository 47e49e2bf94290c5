// Package analysis implements the client-side orchestration for fishing-spot
// photo analysis: image staging, the analysis state machine, and usage
// tracking. It owns no rendering; presentation layers observe its state.
package analysis

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxImageBytes matches the server-side upload cap.
const MaxImageBytes = 10 * 1024 * 1024

// previewMaxDim bounds the longest side of the preview thumbnail.
const previewMaxDim = 320

// ValidationError rejects a file before anything is staged. The reason is
// shown to users as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// File is a selected file before validation.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// StagedImage is a validated image held for analysis.
type StagedImage struct {
	Name           string
	Data           []byte
	PreviewDataURL string
	MIMEType       string
	SizeBytes      int64
}

// Validate applies the intake rules to file metadata. Callers with only a
// declared MIME type and size (e.g. a Telegram document header) can reject
// early; Stage applies the same rules to the actual bytes.
func Validate(mimeType string, size int64) error {
	if !strings.HasPrefix(mimeType, "image/") {
		return &ValidationError{Reason: "File must be an image"}
	}
	if size > MaxImageBytes {
		return &ValidationError{Reason: "Image too large (max 10MB)"}
	}
	return nil
}

// Stage validates a file and prepares it for analysis. Rejection criteria
// are exactly the server's: the MIME type must begin with image/ and the
// size must not exceed MaxImageBytes.
func Stage(file File) (*StagedImage, error) {
	mimeType := file.MIMEType
	if mimeType == "" {
		// Telegram file downloads carry no declared type; sniff it.
		mimeType = http.DetectContentType(file.Data)
	}
	if err := Validate(mimeType, int64(len(file.Data))); err != nil {
		return nil, err
	}

	return &StagedImage{
		Name:           file.Name,
		Data:           file.Data,
		PreviewDataURL: previewDataURL(file.Data, mimeType),
		MIMEType:       mimeType,
		SizeBytes:      int64(len(file.Data)),
	}, nil
}

// previewDataURL builds a base64 data URL for the staged image. Decodable
// images are thumbnailed so long-lived sessions do not pin full-size
// previews; anything else falls back to the raw bytes. Preview problems are
// never grounds for rejection.
func previewDataURL(data []byte, mimeType string) string {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return dataURL(mimeType, data)
	}

	thumb := imaging.Fit(img, previewMaxDim, previewMaxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return dataURL(mimeType, data)
	}
	return dataURL("image/jpeg", buf.Bytes())
}

func dataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
