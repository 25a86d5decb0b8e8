package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const fileTemplate = `-- Migration: {{.Name}}{{if .Down}} (Rollback){{end}}
-- Created: {{.Created}}
{{- if .Description}}
-- Description: {{.Description}}
{{- end}}

`

var migrationHeader = template.Must(template.New("migration").Parse(fileTemplate))

// versionWidth matches golang-migrate's -seq -digits 6 naming
const versionWidth = 6

// MigrationFile is one up/down pair on disk
type MigrationFile struct {
	Version  uint
	Name     string
	UpPath   string
	DownPath string
}

// BaseName returns the shared file prefix, e.g. 000002_add_report_notes
func (f MigrationFile) BaseName() string {
	return fmt.Sprintf("%0*d_%s", versionWidth, f.Version, f.Name)
}

// CreateMigration writes the next sequential up/down pair into dir.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	clean := sanitizeName(name)
	if clean == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}
	next := uint(1)
	if n := len(existing); n > 0 {
		next = existing[n-1].Version + 1
	}

	mf := &MigrationFile{Version: next, Name: clean}
	mf.UpPath = filepath.Join(dir, mf.BaseName()+".up.sql")
	mf.DownPath = filepath.Join(dir, mf.BaseName()+".down.sql")

	created := time.Now().UTC().Format(time.RFC3339)
	if err := writeHeader(mf.UpPath, clean, description, created, false); err != nil {
		return nil, err
	}
	if err := writeHeader(mf.DownPath, clean, description, created, true); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func writeHeader(path, name, description, created string, down bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	return migrationHeader.Execute(f, struct {
		Name, Description, Created string
		Down                       bool
	}{name, description, created, down})
}

// sanitizeName lower-cases name and collapses separators to underscores
func sanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, c := range strings.ToLower(name) {
		switch {
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			b.WriteRune(c)
			lastUnderscore = false
		case c == ' ' || c == '-' || c == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ListMigrations returns the up migrations in dir ordered by version. Files
// that do not follow the NNNNNN_name.up.sql pattern are ignored.
func ListMigrations(dir string) ([]MigrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []MigrationFile
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if entry.IsDir() || !ok {
			continue
		}
		rawVersion, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(rawVersion, 10, 32)
		if err != nil {
			continue
		}
		files = append(files, MigrationFile{
			Version:  uint(version),
			Name:     name,
			UpPath:   filepath.Join(dir, entry.Name()),
			DownPath: filepath.Join(dir, base+".down.sql"),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}
