// Package report holds the use cases of the imaging report workflow: render
// a report on demand, save its parameters, re-render a saved report, list,
// delete and download. Every operation is scoped to one clinic.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/printing"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/cache"
	infra "github.com/medimaging/backend/internal/infrastructure/printing"
	"github.com/medimaging/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const serviceName = "report"

// Config holds the render settings applied to every report
type Config struct {
	PaperSize printing.PaperSize
	Margins   printing.Margins
	// LockTTL bounds how long one report may stay locked by a render
	LockTTL time.Duration
}

// DefaultConfig returns A4 paper, 15mm margins and the default lock TTL
func DefaultConfig() Config {
	return Config{
		PaperSize: printing.PaperSizeA4,
		Margins:   printing.DefaultMargins(),
		LockTTL:   cache.DefaultLockTTL,
	}
}

// Dependencies are the collaborators of the Service
type Dependencies struct {
	Reports   report.Store
	Patients  report.PatientRepository
	Settings  report.SettingsRepository
	Composer  *infra.Composer
	Renderer  infra.PDFRenderer
	Artifacts infra.ArtifactStore
	Locker    cache.ReportLocker
	Metrics   Recorder
}

// Service implements the report use cases
type Service struct {
	reports   report.Store
	patients  report.PatientRepository
	settings  report.SettingsRepository
	composer  *infra.Composer
	renderer  infra.PDFRenderer
	artifacts infra.ArtifactStore
	locker    cache.ReportLocker
	metrics   Recorder
	config    Config
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new report Service
func NewService(deps Dependencies, config Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Composer == nil {
		deps.Composer = infra.NewComposer()
	}
	if deps.Locker == nil {
		deps.Locker = cache.NewInMemoryReportLocker()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if config.PaperSize == "" {
		config.PaperSize = printing.PaperSizeA4
	}
	if config.Margins.IsZero() {
		config.Margins = printing.DefaultMargins()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = cache.DefaultLockTTL
	}
	return &Service{
		reports:   deps.Reports,
		patients:  deps.Patients,
		settings:  deps.Settings,
		composer:  deps.Composer,
		renderer:  deps.Renderer,
		artifacts: deps.Artifacts,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		config:    config,
		now:       time.Now,
		logger:    logger,
	}
}

// GeneratePDF renders a report from request data. Unless the request is a
// preview, the PDF is stored and the patient, report and images are saved.
func (s *Service) GeneratePDF(ctx context.Context, clinicID uuid.UUID, req ReportRequest) (*PDFResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "generate_pdf",
		telemetry.WithAttribute(telemetry.SpanAttrClinicID, clinicID.String()),
		telemetry.WithAttribute("preview", req.PreviewOnly),
	)
	defer span.End()

	rpt, err := s.buildReport(ctx, clinicID, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rendered, err := s.render(ctx, rpt, SourceRequest)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &PDFResult{
		DownloadName: report.DownloadFilename(rpt.Patient, rpt.Layout.Kind, req.PreviewOnly),
		Inline:       req.PreviewOnly,
		PDF:          rendered.PDFData,
		PageCount:    rendered.PageCount,
		Attempts:     rendered.Attempts,
	}
	if req.PreviewOnly {
		s.logger.Info("report preview rendered",
			zap.String("clinic_id", clinicID.String()),
			zap.Int("pages", rendered.PageCount))
		return result, nil
	}

	now := s.now()
	filename, err := s.allocateArtifactName(ctx, clinicID, rpt.ArtifactName(now))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.artifacts.Save(ctx, clinicID, filename, rendered.PDFData); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	patient, err := s.upsertPatient(ctx, clinicID, rpt.Patient)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rpt.AttachPatient(patient.ID)
	if _, err := rpt.MarkGenerated(filename, now); err != nil {
		return nil, err
	}
	if _, err := s.reports.SaveReport(ctx, rpt); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.ReportStored(ctx, rpt.Layout.Kind.String())
	result.ReportID = rpt.ID
	result.Filename = filename
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReportID, rpt.ID.String(),
		telemetry.SpanAttrPDFFilename, filename,
		telemetry.SpanAttrPageCount, rendered.PageCount,
	)
	s.logger.Info("report generated",
		zap.String("clinic_id", clinicID.String()),
		zap.String("report_id", rpt.ID.String()),
		zap.String("filename", filename),
		zap.Int("images", rpt.ImagesCount),
		zap.Int("attempts", rendered.Attempts))
	return result, nil
}

// SaveReport persists the report parameters and images without rendering
func (s *Service) SaveReport(ctx context.Context, clinicID uuid.UUID, req ReportRequest) (*SaveResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "save",
		telemetry.WithAttribute(telemetry.SpanAttrClinicID, clinicID.String()),
	)
	defer span.End()

	rpt, err := s.buildReport(ctx, clinicID, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	patient, err := s.upsertPatient(ctx, clinicID, rpt.Patient)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rpt.AttachPatient(patient.ID)

	id, err := s.reports.SaveReport(ctx, rpt)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.ReportStored(ctx, rpt.Layout.Kind.String())
	s.logger.Info("report saved",
		zap.String("clinic_id", clinicID.String()),
		zap.String("report_id", id.String()),
		zap.Int("images", rpt.ImagesCount))
	return &SaveResult{ReportID: id}, nil
}

// ListReports returns the clinic's reports newest first
func (s *Service) ListReports(ctx context.Context, clinicID uuid.UUID) ([]ReportListItem, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "list")
	defer span.End()

	reports, err := s.reports.ListReports(ctx, clinicID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	items := make([]ReportListItem, len(reports))
	for i, r := range reports {
		items[i] = toListItem(r)
	}
	return items, nil
}

// GenerateFromSaved renders a saved report. Only one render of a given report
// runs at a time; a concurrent request fails with a conflict. The artifact of
// an earlier render is removed once the new one is recorded.
func (s *Service) GenerateFromSaved(ctx context.Context, clinicID, reportID uuid.UUID) (*PDFResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "generate_from_saved",
		telemetry.WithAttribute(telemetry.SpanAttrClinicID, clinicID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrReportID, reportID.String()),
	)
	defer span.End()

	release, err := s.locker.Acquire(ctx, reportID, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, shared.NewDomainError(shared.CodeConflict, "report is already being generated")
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	rpt, err := s.reports.LoadReport(ctx, reportID, clinicID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rendered, err := s.render(ctx, rpt, SourceSaved)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	filename, err := s.allocateArtifactName(ctx, clinicID, rpt.ArtifactName(now))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.artifacts.Save(ctx, clinicID, filename, rendered.PDFData); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	previous, err := rpt.MarkGenerated(filename, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.reports.SaveReport(ctx, rpt); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if previous != "" && previous != filename {
		s.removeArtifact(ctx, clinicID, previous)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPDFFilename, filename,
		telemetry.SpanAttrPageCount, rendered.PageCount,
	)

	s.logger.Info("saved report generated",
		zap.String("clinic_id", clinicID.String()),
		zap.String("report_id", reportID.String()),
		zap.String("filename", filename))

	return &PDFResult{
		ReportID:     rpt.ID,
		Filename:     filename,
		DownloadName: report.DownloadFilename(rpt.Patient, rpt.Layout.Kind, false),
		PDF:          rendered.PDFData,
		PageCount:    rendered.PageCount,
		Attempts:     rendered.Attempts,
	}, nil
}

// DeleteReport removes the report, its images and its artifact
func (s *Service) DeleteReport(ctx context.Context, clinicID, reportID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "delete",
		telemetry.WithAttribute(telemetry.SpanAttrClinicID, clinicID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrReportID, reportID.String()),
	)
	defer span.End()

	rpt, err := s.reports.LoadReport(ctx, reportID, clinicID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := s.reports.DeleteReport(ctx, reportID, clinicID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if rpt.Filename != "" {
		s.removeArtifact(ctx, clinicID, rpt.Filename)
	}

	s.metrics.ReportDeleted(ctx)
	s.logger.Info("report deleted",
		zap.String("clinic_id", clinicID.String()),
		zap.String("report_id", reportID.String()))
	return nil
}

// GetArtifact opens a rendered PDF owned by the clinic
func (s *Service) GetArtifact(ctx context.Context, clinicID uuid.UUID, filename string) (*Artifact, error) {
	if err := infra.ValidateArtifactName(filename); err != nil {
		return nil, err
	}
	if _, err := s.reports.FindByFilename(ctx, clinicID, filename); err != nil {
		return nil, err
	}
	content, err := s.artifacts.Open(ctx, clinicID, filename)
	if err != nil {
		return nil, err
	}
	return &Artifact{Filename: filename, Content: content}, nil
}

// buildReport validates the request and assembles a saved-state report.
// Branding sent with the request wins over the clinic's stored settings.
func (s *Service) buildReport(ctx context.Context, clinicID uuid.UUID, req ReportRequest) (*report.Report, error) {
	patient, err := req.PatientData.snapshot()
	if err != nil {
		return nil, err
	}
	layout, err := req.layout()
	if err != nil {
		return nil, err
	}
	images, err := req.images()
	if err != nil {
		return nil, err
	}
	branding, err := s.resolveBranding(ctx, clinicID, req.ClinicData)
	if err != nil {
		return nil, err
	}
	return report.NewReport(clinicID, patient, layout, branding, images)
}

func (s *Service) resolveBranding(ctx context.Context, clinicID uuid.UUID, requested *BrandingDTO) (report.ClinicBranding, error) {
	stored, err := loadBranding(ctx, s.settings, clinicID)
	if err != nil {
		return report.ClinicBranding{}, err
	}
	if requested == nil {
		return stored, nil
	}
	b := requested.branding().OrDefault(stored)
	if b.Logo == "" {
		b.Logo = stored.Logo
	}
	return b, nil
}

func (s *Service) render(ctx context.Context, rpt *report.Report, source string) (*infra.RenderResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "render",
		telemetry.WithAttribute(telemetry.SpanAttrReportKind, rpt.Layout.Kind.String()),
		telemetry.WithAttribute(telemetry.SpanAttrImageCount, len(rpt.Images)),
	)
	defer span.End()

	html, err := s.composer.ComposeHTML(rpt.Patient, rpt.Branding, rpt.Images, rpt.Layout)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	started := time.Now()
	result, err := s.renderer.Render(ctx, &infra.RenderRequest{
		HTML:        html,
		PaperSize:   s.config.PaperSize,
		Orientation: rpt.Layout.Orientation(),
		Margins:     s.config.Margins,
		Title:       infra.ReportTitle(rpt.Layout.Kind),
	})

	var pages, attempts int
	if result != nil {
		pages, attempts = result.PageCount, result.Attempts
	}
	s.metrics.RenderCompleted(ctx, rpt.Layout.Kind.String(), source, pages, attempts, time.Since(started), err)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return result, err
}

// upsertPatient finds the clinic's patient by external id and refreshes it,
// or creates it on first sight.
func (s *Service) upsertPatient(ctx context.Context, clinicID uuid.UUID, snapshot report.PatientSnapshot) (*report.Patient, error) {
	patient, err := s.patients.FindByExternalID(ctx, clinicID, snapshot.ExternalID)
	switch {
	case err == nil:
		patient.Refresh(snapshot)
	case shared.IsNotFound(err):
		patient = report.NewPatient(clinicID, snapshot)
	default:
		return nil, err
	}
	if err := s.patients.Save(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// maxArtifactVariants bounds the numbered names tried for one render
const maxArtifactVariants = 100

// allocateArtifactName returns base, or its first numbered variant, that no
// report references and no stored file occupies. Names only have one-second
// resolution, so two renders of the same patient and kind can collide.
func (s *Service) allocateArtifactName(ctx context.Context, clinicID uuid.UUID, base string) (string, error) {
	for n := 1; n <= maxArtifactVariants; n++ {
		name := report.NumberedFilename(base, n)
		taken, err := s.artifactNameTaken(ctx, clinicID, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", shared.NewDomainError(shared.CodeConflict, "too many reports generated for this patient at once")
}

func (s *Service) artifactNameTaken(ctx context.Context, clinicID uuid.UUID, name string) (bool, error) {
	if _, err := s.reports.FindByFilename(ctx, clinicID, name); err == nil {
		return true, nil
	} else if !shared.IsNotFound(err) {
		return false, err
	}
	content, err := s.artifacts.Open(ctx, clinicID, name)
	if err == nil {
		_ = content.Close()
		return true, nil
	}
	if shared.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// removeArtifact deletes a file best-effort; a failure only leaves an orphan.
// A file some other report of the clinic still points at is kept.
func (s *Service) removeArtifact(ctx context.Context, clinicID uuid.UUID, filename string) {
	if _, err := s.reports.FindByFilename(ctx, clinicID, filename); err == nil {
		s.logger.Warn("report artifact still referenced, keeping it",
			zap.String("clinic_id", clinicID.String()),
			zap.String("filename", filename))
		return
	} else if !shared.IsNotFound(err) {
		s.logger.Warn("failed to check report artifact references",
			zap.String("clinic_id", clinicID.String()),
			zap.String("filename", filename),
			zap.Error(err))
		return
	}
	if err := s.artifacts.Delete(ctx, clinicID, filename); err != nil {
		s.logger.Warn("failed to remove report artifact",
			zap.String("clinic_id", clinicID.String()),
			zap.String("filename", filename),
			zap.Error(err))
	}
}
