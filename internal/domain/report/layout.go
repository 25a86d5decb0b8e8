package report

import (
	"fmt"

	"github.com/medimaging/backend/internal/domain/printing"
	"github.com/medimaging/backend/internal/domain/shared"
)

const (
	// DefaultImageSizePercent applies when the caller leaves the size unset.
	DefaultImageSizePercent = 120
	// MaxImageSizePercent caps the requested scale.
	MaxImageSizePercent = 300
)

// LayoutOptions controls how images are laid out on the rendered pages.
type LayoutOptions struct {
	ImagesPerPage    int  `json:"imagesPerPage"`
	ImageSizePercent int  `json:"imageSize"`
	Kind             Kind `json:"reportType"`
}

// NewLayoutOptions validates and builds layout options. A zero size means
// "use the default".
func NewLayoutOptions(imagesPerPage, imageSizePercent int, kind Kind) (LayoutOptions, error) {
	l := LayoutOptions{
		ImagesPerPage:    imagesPerPage,
		ImageSizePercent: imageSizePercent,
		Kind:             kind,
	}
	if err := l.Validate(); err != nil {
		return LayoutOptions{}, err
	}
	return l, nil
}

// Validate checks the layout invariants.
func (l LayoutOptions) Validate() error {
	if !l.Kind.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("report type must be %q or %q", KindXRay, KindUltrasound))
	}
	if l.ImagesPerPage < 1 {
		return shared.NewValidationError("images per page must be at least 1")
	}
	if l.ImageSizePercent < 0 || l.ImageSizePercent > MaxImageSizePercent {
		return shared.NewValidationError(fmt.Sprintf("image size must be between 0 and %d percent", MaxImageSizePercent))
	}
	return nil
}

// EffectiveScale returns max(requested, floor) where an unset request counts as
// DefaultImageSizePercent.
func (l LayoutOptions) EffectiveScale() int {
	requested := l.ImageSizePercent
	if requested <= 0 {
		requested = DefaultImageSizePercent
	}
	return max(requested, l.Kind.ScaleFloor())
}

// Orientation is derived from the report kind.
func (l LayoutOptions) Orientation() printing.Orientation {
	return l.Kind.DefaultOrientation()
}
