package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// DownloadRecord is one accepted download: the provenance row appended to
// the acquisition manifest.
type DownloadRecord struct {
	Architect string
	ImageURL  string
	Width     int
	Height    int
	LocalPath string
}

// Appender streams DownloadRecords to a manifest CSV, flushing after every
// row so a crash mid-run loses at most the in-flight item.
type Appender struct {
	f *os.File
	w *csv.Writer
}

// NewAppender opens the manifest for appending, writing the header when the
// file is new or empty. Reopening an existing manifest resumes it.
func NewAppender(path string) (*Appender, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open manifest for append: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	a := &Appender{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := a.w.Write(FetchHeader()); err != nil {
			_ = f.Close()
			return nil, err
		}
		a.w.Flush()
		if err := a.w.Error(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return a, nil
}

// Append writes one record and flushes it to disk.
func (a *Appender) Append(rec DownloadRecord) error {
	row := []string{
		rec.Architect,
		rec.ImageURL,
		dimension(rec.Width),
		dimension(rec.Height),
		rec.LocalPath,
	}
	if err := a.w.Write(row); err != nil {
		return err
	}
	a.w.Flush()
	return a.w.Error()
}

func (a *Appender) Close() error {
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		_ = a.f.Close()
		return err
	}
	return a.f.Close()
}

// dimension renders a reported pixel dimension, leaving the cell empty when
// the search result did not include one.
func dimension(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}
