package report

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
)

const (
	// MaxImageBytes is the decoded size limit of a single image.
	MaxImageBytes = 10 << 20
	// MaxImagesPerReport bounds one report.
	MaxImagesPerReport = 60

	imageURIScheme     = "data:image/"
	defaultImagePrefix = imageURIScheme + "jpeg;base64,"
)

// ImageAsset is one uploaded image. Data holds the base64 text exactly as it
// was uploaded, optionally with a data URI prefix. Order in a report is
// significant and kept in Position.
type ImageAsset struct {
	ID          uuid.UUID
	DisplayName string
	Data        string
	SizeBytes   int
	Position    int
}

// NewImageAsset validates the payload and computes its decoded size.
func NewImageAsset(displayName, data string) (ImageAsset, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return ImageAsset{}, shared.NewValidationError("image data is required")
	}
	if strings.HasPrefix(data, "data:") && !strings.HasPrefix(data, imageURIScheme) {
		return ImageAsset{}, shared.NewValidationError("image data URI must have an image/* media type")
	}
	size, err := decodedSize(data)
	if err != nil {
		return ImageAsset{}, shared.NewValidationError("image data is not valid base64")
	}
	if size > MaxImageBytes {
		return ImageAsset{}, shared.NewValidationError("image exceeds the 10MB limit")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "image"
	}
	return ImageAsset{
		ID:          uuid.New(),
		DisplayName: name,
		Data:        data,
		SizeBytes:   size,
	}, nil
}

// DataURI returns the value to embed in an <img src>. Values that already
// carry a data: scheme are returned verbatim.
func (a ImageAsset) DataURI() string {
	return ToDataURI(a.Data)
}

// ToDataURI prefixes raw base64 with the default JPEG scheme.
func ToDataURI(data string) string {
	if data == "" || strings.HasPrefix(data, "data:") {
		return data
	}
	return defaultImagePrefix + data
}

func decodedSize(data string) (int, error) {
	payload := data
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 || !strings.Contains(payload[:idx], ";base64") {
			return 0, base64.CorruptInputError(0)
		}
		payload = payload[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return 0, err
		}
	}
	return len(raw), nil
}
