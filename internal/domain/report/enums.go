package report

import (
	"strings"

	"github.com/medimaging/backend/internal/domain/printing"
)

// Kind is the imaging modality of a report.
type Kind string

const (
	KindXRay       Kind = "xray"
	KindUltrasound Kind = "ultrasound"
)

// IsValid checks if the Kind is a valid value
func (k Kind) IsValid() bool {
	return k == KindXRay || k == KindUltrasound
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// ScaleFloor is the minimum image scale, in percent, for the kind.
func (k Kind) ScaleFloor() int {
	if k == KindUltrasound {
		return 100
	}
	return 120
}

// DefaultOrientation returns landscape for ultrasound and portrait otherwise.
func (k Kind) DefaultOrientation() printing.Orientation {
	if k == KindUltrasound {
		return printing.OrientationLandscape
	}
	return printing.OrientationPortrait
}

// DisplayName is the human readable modality name.
func (k Kind) DisplayName() string {
	switch k {
	case KindUltrasound:
		return "Ultrasound"
	default:
		return "X-Ray"
	}
}

// Sex of the patient as recorded on the report.
type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
	SexOther  Sex = "Other"
)

// IsValid checks if the Sex is a valid value
func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	}
	return false
}

// ParseSex accepts any casing ("male", "FEMALE") and returns the canonical value.
func ParseSex(s string) (Sex, bool) {
	for _, v := range []Sex{SexMale, SexFemale, SexOther} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

// Status is the report lifecycle state.
type Status string

const (
	StatusSaved     Status = "saved"
	StatusGenerated Status = "generated"
)

// IsValid checks if the Status is a valid value
func (s Status) IsValid() bool {
	return s == StatusSaved || s == StatusGenerated
}
