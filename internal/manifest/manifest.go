// Package manifest exports the index-aligned state of a widget so the
// host, or a later batch job, can see what was submitted and what was
// reframed.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/photoprep/photoprep/internal/models"
)

// Row describes one upload slot
type Row struct {
	Index       int     `yaml:"index" parquet:"index"`
	ID          string  `yaml:"id" parquet:"id"`
	Name        string  `yaml:"name" parquet:"name"`
	MIMEType    string  `yaml:"mimetype" parquet:"mime_type"`
	Size        int64   `yaml:"size" parquet:"size"`
	Width       int     `yaml:"width" parquet:"width"`
	Height      int     `yaml:"height" parquet:"height"`
	AspectRatio float64 `yaml:"aspectratio" parquet:"aspect_ratio"`
	NeedsCrop   bool    `yaml:"needscrop" parquet:"needs_crop"`
	Edited      bool    `yaml:"edited" parquet:"edited"`
	Existing    bool    `yaml:"existing,omitempty" parquet:"existing"`
	RemoteURL   string  `yaml:"remoteurl,omitempty" parquet:"remote_url"`
}

// Manifest is the YAML document form
type Manifest struct {
	Generated         string `yaml:"generated"`
	TargetAspectRatio string `yaml:"targetaspectratio"`
	Pending           int    `yaml:"pending"`
	Rows              []Row  `yaml:"rows"`
}

// Build zips metadata with the upload list. Both must come from the same
// widget snapshot.
func Build(metas []models.PhotoMetadata, uploads []models.RawPhoto) ([]Row, error) {
	if len(metas) != len(uploads) {
		return nil, fmt.Errorf("metadata and uploads differ in length: %d != %d", len(metas), len(uploads))
	}
	rows := make([]Row, 0, len(metas))
	for i, m := range metas {
		u := uploads[i]
		rows = append(rows, Row{
			Index:       i,
			ID:          m.ID,
			Name:        u.Name,
			MIMEType:    u.MIMEType,
			Size:        u.Size,
			Width:       m.Width,
			Height:      m.Height,
			AspectRatio: m.AspectRatio(),
			NeedsCrop:   m.NeedsCrop,
			Edited:      m.Edited,
			Existing:    m.Existing,
			RemoteURL:   u.RemoteURL,
		})
	}
	return rows, nil
}

// New wraps rows in a manifest document
func New(ratio string, rows []Row) Manifest {
	pending := 0
	for _, r := range rows {
		if r.NeedsCrop && !r.Edited {
			pending++
		}
	}
	return Manifest{
		Generated:         time.Now().UTC().Format(time.RFC3339),
		TargetAspectRatio: ratio,
		Pending:           pending,
		Rows:              rows,
	}
}

func WriteYAML(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return enc.Close()
}

func ReadYAML(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}

func WriteParquet(w io.Writer, rows []Row) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func ReadParquet(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var rows []Row
	buf := make([]Row, 64)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	slog.Debug("Read manifest rows", "rows", len(rows), "row_groups", len(pf.RowGroups()))
	return rows, nil
}

// WriteFile picks the format from the extension: .parquet, .yaml or .yml
func WriteFile(path string, m Manifest) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".parquet" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported manifest format: %s", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest file: %w", err)
	}
	defer f.Close()

	if ext == ".parquet" {
		err = WriteParquet(f, m.Rows)
	} else {
		err = WriteYAML(f, m)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
