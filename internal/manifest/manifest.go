// Package manifest reads and writes the tabular record of downloaded images.
// Columns beyond the required ones are preserved verbatim so re-tagging an
// externally edited manifest never drops data.
package manifest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Column names used by the pipeline. local_path is the only required input
// column; the rest appear in manifests produced by the fetcher.
const (
	ColArchitect = "architect"
	ColImageURL  = "image_url"
	ColWidth     = "width"
	ColHeight    = "height"
	ColLocalPath = "local_path"
	ColTags      = "tags"
)

// FetchHeader is the column set written by the fetcher for new manifests.
func FetchHeader() []string {
	return []string{ColArchitect, ColImageURL, ColWidth, ColHeight, ColLocalPath}
}

// Document is an in-memory manifest: a header plus records in file order.
type Document struct {
	Header  []string
	Records [][]string

	index map[string]int
}

// Read loads a manifest CSV. The local_path column is required.
func Read(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return parse(f)
}

func parse(r io.Reader) (*Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	doc := &Document{Header: header, index: make(map[string]int, len(header))}
	for i, name := range header {
		doc.index[strings.TrimSpace(name)] = i
	}
	if _, ok := doc.index[ColLocalPath]; !ok {
		return nil, fmt.Errorf("manifest missing required column %q", ColLocalPath)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return doc, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest row: %w", err)
		}
		// Short records are tolerated (missing cells read as ""), but a
		// record wider than the header has cells no column can name.
		if len(rec) > len(header) {
			return nil, fmt.Errorf("manifest row %d has %d fields, header has %d", len(doc.Records)+1, len(rec), len(header))
		}
		doc.Records = append(doc.Records, rec)
	}
}

// Len returns the number of data rows.
func (d *Document) Len() int {
	return len(d.Records)
}

// Value returns the cell at (row, column), or "" when the column is absent
// or the record is short.
func (d *Document) Value(row int, column string) string {
	i, ok := d.index[column]
	if !ok || row < 0 || row >= len(d.Records) || i >= len(d.Records[row]) {
		return ""
	}
	return d.Records[row][i]
}

// LocalPath returns the local_path cell for a row.
func (d *Document) LocalPath(row int) string {
	return strings.TrimSpace(d.Value(row, ColLocalPath))
}

// Tags returns the raw tags cell for a row ("" when the column is absent).
func (d *Document) Tags(row int) string {
	return strings.TrimSpace(d.Value(row, ColTags))
}

// HasTags reports whether a row already carries a non-empty tag list, which
// makes it skippable on resumed runs.
func (d *Document) HasTags(row int) bool {
	v := d.Tags(row)
	return v != "" && v != "[]" && v != "null"
}

// WithTags merges per-row tag results into a copy of the document. Column
// order is preserved with tags as the last column, moved there when the
// input carried it elsewhere. Rows with a result get that result's list
// serialized as a JSON array; other rows retain their pre-existing cell, or
// an empty array when they had none. Row count and order are unchanged.
func (d *Document) WithTags(results map[int][]string) *Document {
	oldTagsIdx, hadTags := d.index[ColTags]

	header := make([]string, 0, len(d.Header)+1)
	srcIdx := make([]int, 0, len(d.Header))
	for i, name := range d.Header {
		if hadTags && i == oldTagsIdx {
			continue
		}
		header = append(header, name)
		srcIdx = append(srcIdx, i)
	}
	header = append(header, ColTags)
	tagsIdx := len(header) - 1

	out := &Document{Header: header, index: make(map[string]int, len(header))}
	for i, name := range header {
		out.index[strings.TrimSpace(name)] = i
	}

	out.Records = make([][]string, len(d.Records))
	for row, rec := range d.Records {
		merged := make([]string, len(header))
		for j, src := range srcIdx {
			if src < len(rec) {
				merged[j] = rec[src]
			}
		}
		if tags, ok := results[row]; ok {
			merged[tagsIdx] = EncodeTags(tags)
		} else if hadTags && oldTagsIdx < len(rec) && rec[oldTagsIdx] != "" {
			merged[tagsIdx] = rec[oldTagsIdx]
		} else {
			merged[tagsIdx] = EncodeTags(nil)
		}
		out.Records[row] = merged
	}
	return out
}

// EncodeTags serializes a tag list as a JSON array string. A nil or empty
// list encodes as "[]" so every tags cell is valid JSON.
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		// Unreachable for []string, but keep cells valid.
		return "[]"
	}
	return string(b)
}

// DecodeTags parses a tags cell back into a list. Malformed cells decode as
// empty rather than failing the read.
func DecodeTags(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(cell), &tags); err != nil {
		return nil
	}
	return tags
}

// WriteAtomic persists the document. The write is all-or-nothing: rows go to
// a temp file in the destination directory which is renamed into place only
// after a successful flush and sync.
func (d *Document) WriteAtomic(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	cw := csv.NewWriter(tmp)
	if err := cw.Write(d.Header); err != nil {
		_ = tmp.Close()
		return err
	}
	for _, rec := range d.Records {
		if err := cw.Write(rec); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// DerivedOutputPath returns "<base>_with_tags.csv" next to the input manifest.
func DerivedOutputPath(manifestPath string) string {
	ext := filepath.Ext(manifestPath)
	return strings.TrimSuffix(manifestPath, ext) + "_with_tags" + ext
}
