package domain

import (
	"fmt"
	"os"
)

// ImageFormat tags the raster encoding of an uploaded image.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
)

// FormatFromMIME maps an accepted upload MIME type to its format tag.
func FormatFromMIME(mimeType string) (ImageFormat, bool) {
	switch mimeType {
	case "image/jpeg":
		return FormatJPEG, true
	case "image/png":
		return FormatPNG, true
	default:
		return "", false
	}
}

// MIME returns the MIME type for the format.
func (f ImageFormat) MIME() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// ImageHandle references image bytes on disk. The caller that created it
// owns the file and deletes it once the analysis returns.
type ImageHandle struct {
	Path   string
	Format ImageFormat
}

// ReadAll loads the referenced image bytes.
func (h ImageHandle) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// AnalysisPrompt is the composed request sent to the reasoning service.
// System carries the fixed role and instructions, User the per-request part.
type AnalysisPrompt struct {
	System string
	User   string
}

func (p AnalysisPrompt) String() string {
	return p.System + "\n\n" + p.User
}

// Rating is a 1-5 star score.
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

func (r Rating) Valid() bool {
	return r >= MinRating && r <= MaxRating
}

// Result is the outcome of one successful analysis.
type Result struct {
	RequestID string
	Rating    Rating
	Text      string
}
