package printing

import "github.com/medimaging/backend/internal/domain/shared"

// Margins represents the page margins in millimeters
type Margins struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left int) (Margins, error) {
	if top < 0 || right < 0 || bottom < 0 || left < 0 {
		return Margins{}, shared.NewValidationError("margins cannot be negative")
	}
	if top > 100 || right > 100 || bottom > 100 || left > 100 {
		return Margins{}, shared.NewValidationError("margins cannot exceed 100mm")
	}
	return Margins{
		Top:    top,
		Right:  right,
		Bottom: bottom,
		Left:   left,
	}, nil
}

// UniformMargins returns the same margin on all four sides.
func UniformMargins(mm int) (Margins, error) {
	return NewMargins(mm, mm, mm, mm)
}

// DefaultMargins returns the default report margins (15mm on every side).
func DefaultMargins() Margins {
	return Margins{
		Top:    15,
		Right:  15,
		Bottom: 15,
		Left:   15,
	}
}

// IsZero returns true if all margins are zero
func (m Margins) IsZero() bool {
	return m.Top == 0 && m.Right == 0 && m.Bottom == 0 && m.Left == 0
}
