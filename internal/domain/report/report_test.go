package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/printing"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func janeDoe() PatientSnapshot {
	return PatientSnapshot{Name: "Jane Doe", ExternalID: "UH001", Age: 34, Sex: SexFemale}
}

func testImages(t *testing.T, n int) []ImageAsset {
	t.Helper()
	images := make([]ImageAsset, n)
	for i := range images {
		img, err := NewImageAsset("scan.png", pixelPNG)
		require.NoError(t, err)
		images[i] = img
	}
	return images
}

func TestLayoutOptions_EffectiveScale(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		kind      Kind
		want      int
	}{
		{"xray below floor", 80, KindXRay, 120},
		{"xray above floor", 150, KindXRay, 150},
		{"ultrasound below floor", 90, KindUltrasound, 100},
		{"ultrasound at floor", 100, KindUltrasound, 100},
		{"unset xray", 0, KindXRay, 120},
		{"unset ultrasound", 0, KindUltrasound, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLayoutOptions(2, tt.requested, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.EffectiveScale())
			assert.GreaterOrEqual(t, l.EffectiveScale(), tt.kind.ScaleFloor())
		})
	}
}

func TestLayoutOptions_Validate(t *testing.T) {
	_, err := NewLayoutOptions(0, 100, KindXRay)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewLayoutOptions(2, 100, Kind("mri"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewLayoutOptions(2, -5, KindXRay)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// counts above four wrap in the two-column grid
	layout, err := NewLayoutOptions(16, 0, KindXRay)
	require.NoError(t, err)
	assert.Equal(t, 16, layout.ImagesPerPage)
}

func TestKind_Orientation(t *testing.T) {
	assert.Equal(t, printing.OrientationPortrait, KindXRay.DefaultOrientation())
	assert.Equal(t, printing.OrientationLandscape, KindUltrasound.DefaultOrientation())
}

func TestParseSex(t *testing.T) {
	s, ok := ParseSex("female")
	assert.True(t, ok)
	assert.Equal(t, SexFemale, s)

	_, ok = ParseSex("unknown")
	assert.False(t, ok)
}

func TestPatientSnapshot_Validate(t *testing.T) {
	assert.NoError(t, janeDoe().Validate())

	p := janeDoe()
	p.Name = " "
	assert.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)

	p = janeDoe()
	p.ExternalID = "../etc"
	assert.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)

	p = janeDoe()
	p.Sex = "female"
	assert.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)
}

func TestNewImageAsset(t *testing.T) {
	t.Run("raw base64 gets jpeg prefix", func(t *testing.T) {
		img, err := NewImageAsset("a.png", pixelPNG)
		require.NoError(t, err)
		assert.Equal(t, 68, img.SizeBytes)
		assert.Equal(t, "data:image/jpeg;base64,"+pixelPNG, img.DataURI())
	})

	t.Run("data uri is kept verbatim", func(t *testing.T) {
		uri := "data:image/png;base64," + pixelPNG
		img, err := NewImageAsset("a.png", uri)
		require.NoError(t, err)
		assert.Equal(t, uri, img.DataURI())
		assert.Equal(t, 68, img.SizeBytes)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NewImageAsset("a.png", "not base64 !!")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = NewImageAsset("a.png", "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects non-image data uri", func(t *testing.T) {
		_, err := NewImageAsset("a.pdf", "data:application/pdf;base64,"+pixelPNG)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		err = ClinicBranding{DisplayName: "Clinic", Logo: "data:text/html;base64," + pixelPNG}.Validate()
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestNewReport(t *testing.T) {
	clinicID := uuid.New()
	layout, err := NewLayoutOptions(2, 100, KindXRay)
	require.NoError(t, err)

	t.Run("starts saved with ordered images", func(t *testing.T) {
		r, err := NewReport(clinicID, janeDoe(), layout, DefaultBranding(), testImages(t, 3))
		require.NoError(t, err)

		assert.Equal(t, StatusSaved, r.Status)
		assert.Equal(t, clinicID, r.ClinicID)
		assert.Equal(t, 3, r.ImagesCount)
		for i, img := range r.Images {
			assert.Equal(t, i, img.Position)
		}
		assert.True(t, r.BelongsTo(clinicID))
		assert.False(t, r.BelongsTo(uuid.New()))
	})

	t.Run("requires images", func(t *testing.T) {
		_, err := NewReport(clinicID, janeDoe(), layout, DefaultBranding(), nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("requires clinic", func(t *testing.T) {
		_, err := NewReport(uuid.Nil, janeDoe(), layout, DefaultBranding(), testImages(t, 1))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestReport_MarkGenerated(t *testing.T) {
	layout, err := NewLayoutOptions(1, 0, KindUltrasound)
	require.NoError(t, err)
	r, err := NewReport(uuid.New(), janeDoe(), layout, DefaultBranding(), testImages(t, 1))
	require.NoError(t, err)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prev, err := r.MarkGenerated("first.pdf", first)
	require.NoError(t, err)
	assert.Empty(t, prev)
	assert.True(t, r.IsGenerated())
	assert.Equal(t, first, *r.GeneratedAt)

	second := first.Add(time.Hour)
	prev, err = r.MarkGenerated("second.pdf", second)
	require.NoError(t, err)
	assert.Equal(t, "first.pdf", prev)
	assert.Equal(t, StatusGenerated, r.Status)
	assert.Equal(t, "second.pdf", r.Filename)
	assert.Equal(t, second, *r.GeneratedAt)

	_, err = r.MarkGenerated("", second)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Jane_Doe", SanitizeFilename("Jane Doe"))
	assert.Equal(t, "OBrien_MaryAnn", SanitizeFilename("O'Brien,  Mary-Ann"))
	assert.Equal(t, "", SanitizeFilename("<>/\\"))

	long := SanitizeFilename("abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij")
	assert.Len(t, long, 50)
}

func TestArtifactFilename(t *testing.T) {
	at := time.Date(2026, 10, 19, 14, 5, 9, 123, time.UTC)

	name := ArtifactFilename(janeDoe(), KindXRay, at)
	assert.Equal(t, "Jane_Doe_UH001_xray_2026-10-19T14-05-09.pdf", name)

	assert.Equal(t, "Jane_Doe_UH001_xray_report.pdf", DownloadFilename(janeDoe(), KindXRay, false))
	assert.Equal(t, "Jane_Doe_UH001_ultrasound_preview.pdf", DownloadFilename(janeDoe(), KindUltrasound, true))

	p := janeDoe()
	p.Name = "李雷"
	assert.Equal(t, "patient_UH001_xray_report.pdf", DownloadFilename(p, KindXRay, false))
}

func TestNumberedFilename(t *testing.T) {
	base := "Jane_Doe_UH001_xray_2026-10-19T14-05-09.pdf"
	assert.Equal(t, base, NumberedFilename(base, 0))
	assert.Equal(t, base, NumberedFilename(base, 1))
	assert.Equal(t, "Jane_Doe_UH001_xray_2026-10-19T14-05-09-2.pdf", NumberedFilename(base, 2))
	assert.Equal(t, "noext-3", NumberedFilename("noext", 3))
}

func TestClinicBranding(t *testing.T) {
	b := ClinicBranding{DisplayName: "", AddressText: ""}.OrDefault(ClinicBranding{DisplayName: "Breathe", AddressText: "Main St"})
	assert.Equal(t, "Breathe", b.DisplayName)
	assert.Equal(t, "Main St", b.AddressText)

	assert.Empty(t, ClinicBranding{}.LogoURI())
	assert.Equal(t, "data:image/jpeg;base64,"+pixelPNG, ClinicBranding{Logo: pixelPNG}.LogoURI())

	assert.Error(t, ClinicBranding{Logo: "%%%"}.Validate())
}
