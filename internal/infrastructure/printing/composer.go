package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/medimaging/backend/internal/domain/report"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const reportDateLayout = "02/01/2006"

var titleCaser = cases.Upper(language.English)

// Composer builds the report HTML document. It performs no I/O; the output
// depends only on its arguments and the clock.
type Composer struct {
	now func() time.Time
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

// NewComposer creates a Composer.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reportView struct {
	Title         string
	LogoSrc       template.URL
	ClinicName    string
	ClinicAddress string
	Date          string
	Patient       report.PatientSnapshot
	ImagesSection template.HTML
	Landscape     bool
}

// ReportTitle is "X-RAY REPORT" or "ULTRASOUND REPORT".
func ReportTitle(kind report.Kind) string {
	return titleCaser.String(kind.DisplayName() + " report")
}

// ComposeHTML renders the complete report document.
func (c *Composer) ComposeHTML(patient report.PatientSnapshot, branding report.ClinicBranding, images []report.ImageAsset, layout report.LayoutOptions) (string, error) {
	pages := Paginate(images, layout.ImagesPerPage)
	section, err := RenderImagesSection(pages, layout.EffectiveScale())
	if err != nil {
		return "", err
	}

	view := reportView{
		Title:         ReportTitle(layout.Kind),
		LogoSrc:       imageSrc(branding.LogoURI()),
		ClinicName:    branding.DisplayName,
		ClinicAddress: strings.TrimSpace(branding.AddressText),
		Date:          c.now().Format(reportDateLayout),
		Patient:       patient,
		ImagesSection: section,
		Landscape:     layout.Orientation().IsLandscape(),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("compose report: %w", err)
	}
	return buf.String(), nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}} - {{.Patient.Name}}</title>
<style>
  @page { size: A4 {{if .Landscape}}landscape{{else}}portrait{{end}}; }
  body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background: white; color: #333; }
  .header { display: flex; align-items: center; justify-content: center; gap: 20px; border-bottom: 2px solid #2c5aa0; padding-bottom: 15px; margin-bottom: 20px; }
  .clinic-logo { max-width: 250px; max-height: 80px; object-fit: contain; flex-shrink: 0; }
  .clinic-info { text-align: center; flex-grow: 1; }
  .clinic-name { font-size: 24px; font-weight: bold; color: #2c5aa0; margin-bottom: 5px; }
  .clinic-address { font-size: 12px; color: #666; white-space: pre-line; margin-bottom: 10px; }
  .report-title { font-size: 20px; font-weight: bold; color: #2c5aa0; margin-top: 10px; }
  .date-section { text-align: right; margin-bottom: 20px; font-size: 12px; }
  .patient-info { display: grid; grid-template-columns: 1fr 1fr 1fr; gap: 15px; margin-bottom: 20px; padding: 15px; background: #f8f9fa; border-radius: 5px; }
  .info-group { display: flex; flex-direction: column; }
  .info-label { font-weight: bold; font-size: 11px; color: #555; margin-bottom: 3px; }
  .info-value { font-size: 13px; color: #333; padding: 3px 0; }
  .images-grid { display: grid; gap: 20px; margin: 20px 0; justify-items: center; align-items: start; }
  .images-grid-1 { grid-template-columns: 1fr; }
  .images-grid-2 { grid-template-columns: 1fr 1fr; }
  .images-grid-3 { grid-template-columns: 1fr 1fr 1fr; }
  .images-grid-4 { grid-template-columns: 1fr 1fr; }
  .image-item { text-align: center; width: 100%; display: flex; flex-direction: column; align-items: center; }
  .image-item img { max-width: 100%; object-fit: contain; border: 1px solid #ddd; border-radius: 4px; }
  .single-image { display: flex; flex-direction: column; align-items: center; justify-content: center; width: 100%; }
  .single-image img { width: 100%; object-fit: contain; }
  .image-caption { font-size: 11px; color: #666; margin-top: 5px; font-weight: bold; }
  .footer { margin-top: 30px; padding-top: 15px; border-top: 1px solid #ddd; font-size: 10px; color: #666; text-align: center; }
  .page-break { page-break-before: always; break-before: page; }
</style>
</head>
<body>
<div class="header">
  {{if .LogoSrc}}<img src="{{.LogoSrc}}" alt="Clinic Logo" class="clinic-logo">{{end}}
  <div class="clinic-info">
    <div class="clinic-name">{{.ClinicName}}</div>
    <div class="clinic-address">{{.ClinicAddress}}</div>
    <div class="report-title">{{.Title}}</div>
  </div>
</div>
<div class="date-section"><strong>Date: {{.Date}}</strong></div>
<div class="patient-info">
  <div class="info-group"><div class="info-label">PATIENT NAME</div><div class="info-value">{{.Patient.Name}}</div></div>
  <div class="info-group"><div class="info-label">UHID</div><div class="info-value">{{.Patient.ExternalID}}</div></div>
  <div class="info-group"><div class="info-label">AGE/SEX</div><div class="info-value">{{.Patient.Age}}/{{.Patient.Sex}}</div></div>
  {{- if .Patient.ReferredBy}}
  <div class="info-group"><div class="info-label">REFERRED BY</div><div class="info-value">{{.Patient.ReferredBy}}</div></div>
  {{- end}}
</div>
{{.ImagesSection}}
<div class="footer"><p>This is a computer generated report.</p></div>
</body>
</html>
`))
