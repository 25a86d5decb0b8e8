package printing

import "strings"

// PaperSize represents the paper size for printing
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"     // 210mm x 297mm
	PaperSizeA5     PaperSize = "A5"     // 148mm x 210mm
	PaperSizeLetter PaperSize = "LETTER" // 216mm x 279mm
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA5, PaperSizeLetter:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the portrait paper dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height int) {
	switch p {
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 216, 279
	default:
		return 210, 297
	}
}

// ParsePaperSize parses a case-insensitive paper size, falling back to A4.
func ParsePaperSize(s string) PaperSize {
	p := PaperSize(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return PaperSizeA4
	}
	return p
}

// Orientation represents the page orientation for printing
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// String returns the string representation of Orientation
func (o Orientation) String() string {
	return string(o)
}

// IsLandscape reports whether pages are printed landscape.
func (o Orientation) IsLandscape() bool {
	return o == OrientationLandscape
}
