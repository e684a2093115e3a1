package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRead_RequiresLocalPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "m.csv")
	writeFile(t, path, "architect,image_url\nA,http://x\n")

	if _, err := Read(path); err == nil || !strings.Contains(err.Error(), ColLocalPath) {
		t.Fatalf("expected missing-column error, got %v", err)
	}
}

func TestRead_PreservesExtraColumns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "m.csv")
	writeFile(t, path, "architect,notes,local_path\nA,hand-curated,/img/a.jpg\n")

	doc, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Value(0, "notes"); got != "hand-curated" {
		t.Fatalf("extra column lost: %q", got)
	}
	if got := doc.LocalPath(0); got != "/img/a.jpg" {
		t.Fatalf("local_path: %q", got)
	}
}

func TestWithTags_RowCountAndOrderInvariant(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "m.csv")
	writeFile(t, path,
		"architect,local_path\nA,/a.jpg\nB,/b.jpg\nC,/c.jpg\n")

	doc, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	merged := doc.WithTags(map[int][]string{
		1: {"Glass", "Steel"},
	})
	if merged.Len() != 3 {
		t.Fatalf("rows = %d, want 3", merged.Len())
	}
	// Order preserved, tags column appended.
	wantHeader := []string{"architect", "local_path", "tags"}
	if !reflect.DeepEqual(merged.Header, wantHeader) {
		t.Fatalf("header = %v", merged.Header)
	}
	if got := merged.Value(0, ColArchitect); got != "A" {
		t.Fatalf("row 0 architect: %q", got)
	}
	if got := merged.Tags(0); got != "[]" {
		t.Fatalf("row without result should get empty array, got %q", got)
	}
	if got := merged.Tags(1); got != `["Glass","Steel"]` {
		t.Fatalf("row 1 tags: %q", got)
	}
	if got := merged.Tags(2); got != "[]" {
		t.Fatalf("row 2 tags: %q", got)
	}
}

func TestWithTags_RetainsExistingCellWithoutResult(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "m.csv")
	writeFile(t, path,
		"architect,tags,local_path\nA,\"[\"\"Dome\"\"]\",/a.jpg\nB,,/b.jpg\n")

	doc, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	merged := doc.WithTags(map[int][]string{})

	if got := merged.Tags(0); got != `["Dome"]` {
		t.Fatalf("pre-existing tags lost: %q", got)
	}
	if got := merged.Tags(1); got != "[]" {
		t.Fatalf("empty cell should normalize to [], got %q", got)
	}
	// tags moves to the last column; everything else keeps its order.
	if !reflect.DeepEqual(merged.Header, []string{"architect", "local_path", "tags"}) {
		t.Fatalf("header = %v", merged.Header)
	}
}

func TestWithTags_MovesTagsColumnToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "m.csv")
	writeFile(t, path,
		"architect,tags,notes,local_path\nA,\"[\"\"Dome\"\"]\",keep me,/a.jpg\nB,,also keep,/b.jpg\n")

	doc, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	merged := doc.WithTags(map[int][]string{1: {"Brick"}})

	wantHeader := []string{"architect", "notes", "local_path", "tags"}
	if !reflect.DeepEqual(merged.Header, wantHeader) {
		t.Fatalf("header = %v, want %v", merged.Header, wantHeader)
	}
	// Cells follow their columns through the move.
	if got := merged.Value(0, "notes"); got != "keep me" {
		t.Fatalf("notes cell: %q", got)
	}
	if got := merged.LocalPath(1); got != "/b.jpg" {
		t.Fatalf("local_path: %q", got)
	}
	if got := merged.Tags(0); got != `["Dome"]` {
		t.Fatalf("pre-existing tags: %q", got)
	}
	if got := merged.Tags(1); got != `["Brick"]` {
		t.Fatalf("merged tags: %q", got)
	}
}

func TestRead_RejectsRowWiderThanHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "m.csv")
	writeFile(t, path, "architect,local_path\nA,/a.jpg,stray cell\n")

	if _, err := Read(path); err == nil || !strings.Contains(err.Error(), "fields") {
		t.Fatalf("expected ragged-row error, got %v", err)
	}
}

func TestEncodeDecodeTags(t *testing.T) {
	t.Parallel()

	if got := EncodeTags(nil); got != "[]" {
		t.Fatalf("nil encodes as %q", got)
	}
	if got := EncodeTags([]string{"Brick", "Arch"}); got != `["Brick","Arch"]` {
		t.Fatalf("got %q", got)
	}
	if got := DecodeTags(`["Brick","Arch"]`); !reflect.DeepEqual(got, []string{"Brick", "Arch"}) {
		t.Fatalf("got %v", got)
	}
	if got := DecodeTags("not json"); got != nil {
		t.Fatalf("malformed cell should decode empty, got %v", got)
	}
}

func TestWriteAtomic_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "m.csv")
	writeFile(t, in, "architect,local_path\nMies,/img/b.jpg\n")

	doc, err := Read(in)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "m_with_tags.csv")
	if err := doc.WithTags(map[int][]string{0: {"Glass"}}).WriteAtomic(out); err != nil {
		t.Fatal(err)
	}

	reread, err := Read(out)
	if err != nil {
		t.Fatal(err)
	}
	if reread.Len() != 1 || reread.Tags(0) != `["Glass"]` {
		t.Fatalf("round trip: %d rows, tags %q", reread.Len(), reread.Tags(0))
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("stray temp file %s", e.Name())
		}
	}
}

func TestAppender_HeaderAndResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "m.csv")

	a, err := NewAppender(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := DownloadRecord{
		Architect: "Tadao Ando",
		ImageURL:  "http://x/a.jpg",
		Width:     1200,
		Height:    800,
		LocalPath: "/img/Tadao_Ando/a.jpg",
	}
	if err := a.Append(rec); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening must not duplicate the header.
	a, err = NewAppender(path)
	if err != nil {
		t.Fatal(err)
	}
	rec.ImageURL = "http://x/b.jpg"
	rec.Width = 0
	if err := a.Append(rec); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	doc, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Len() != 2 {
		t.Fatalf("rows = %d, want 2", doc.Len())
	}
	if !reflect.DeepEqual(doc.Header, FetchHeader()) {
		t.Fatalf("header = %v", doc.Header)
	}
	if got := doc.Value(0, ColWidth); got != "1200" {
		t.Fatalf("width = %q", got)
	}
	if got := doc.Value(1, ColWidth); got != "" {
		t.Fatalf("unreported width should be empty, got %q", got)
	}
}

func TestDerivedOutputPath(t *testing.T) {
	t.Parallel()

	got := DerivedOutputPath("/data/architect_google_metadata.csv")
	if got != "/data/architect_google_metadata_with_tags.csv" {
		t.Fatalf("got %q", got)
	}
}
