package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	maxSanitizedLength = 50
	artifactTimeLayout = "2006-01-02T15-04-05"
)

var (
	nonFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// SanitizeFilename strips everything but ASCII letters, digits and whitespace,
// turns whitespace runs into underscores and truncates to 50 characters.
func SanitizeFilename(name string) string {
	s := nonFilenameChars.ReplaceAllString(name, "")
	s = whitespaceRun.ReplaceAllString(s, "_")
	if len(s) > maxSanitizedLength {
		s = s[:maxSanitizedLength]
	}
	return s
}

// ArtifactFilename returns {name}_{externalId}_{kind}_{timestamp}.pdf.
func ArtifactFilename(p PatientSnapshot, kind Kind, at time.Time) string {
	return strings.Join([]string{
		safeName(p.Name),
		p.ExternalID,
		kind.String(),
		at.UTC().Format(artifactTimeLayout),
	}, "_") + ".pdf"
}

// NumberedFilename returns the n-th variant of an artifact name: n <= 1 is
// the name itself, otherwise "-n" goes before the extension.
func NumberedFilename(filename string, n int) string {
	if n <= 1 {
		return filename
	}
	base, ok := strings.CutSuffix(filename, ".pdf")
	if !ok {
		return fmt.Sprintf("%s-%d", filename, n)
	}
	return fmt.Sprintf("%s-%d.pdf", base, n)
}

// DownloadFilename is the name offered to the browser. Previews are suffixed
// "_preview", everything else "_report".
func DownloadFilename(p PatientSnapshot, kind Kind, preview bool) string {
	suffix := "report"
	if preview {
		suffix = "preview"
	}
	return strings.Join([]string{safeName(p.Name), p.ExternalID, kind.String(), suffix}, "_") + ".pdf"
}

func safeName(name string) string {
	s := SanitizeFilename(name)
	if s == "" {
		return "patient"
	}
	return s
}
