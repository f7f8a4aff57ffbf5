// Package oracle is the vision-model boundary: it turns a scanned vale image
// plus reference values into per-field extractions with confidence scores.
package oracle

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/obralink/vale-audit/internal/model"
)

// Oracle reads structured fields from vale images.
type Oracle interface {
	// Extract reads the four audited fields. The record's reference values
	// and the valid plate list are passed along so the model can
	// disambiguate hard-to-read characters.
	Extract(ctx context.Context, img Image, rec model.Record, validPlates []string) (model.Extraction, error)

	// CheckQuality rates the image's legibility 0-10. Advisory: callers
	// proceed to extraction when this fails.
	CheckQuality(ctx context.Context, img Image) (model.QualityCheck, error)
}

// Image is a base64-encoded image ready for a vision model call.
type Image struct {
	MediaType string
	Base64    string
}

// mediaTypes maps file extensions to the media types the API accepts.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// LoadImage reads a local image file and encodes it for the oracle.
func LoadImage(path string) (Image, error) {
	mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Image{}, eris.Errorf("oracle: unsupported image type %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, eris.Wrapf(err, "oracle: read image %s", path)
	}
	return Image{
		MediaType: mediaType,
		Base64:    base64.StdEncoding.EncodeToString(data),
	}, nil
}
