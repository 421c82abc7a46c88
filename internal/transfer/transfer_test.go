package transfer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/types"
)

func sampleJobs() []types.JobApplication {
	return []types.JobApplication{
		{
			ID: "a", Company: "Acme", Role: "Engineer", Status: types.StatusInterview,
			DateApplied: "2024-01-01", LastUpdated: "2024-01-10",
			Notes:        "Line one\n\n**bold**",
			CustomFields: map[string]string{"ref": "Kim"},
		},
		{
			ID: "b", Company: "Globex", Role: "SRE", Status: types.StatusApplied,
			DateApplied: "2024-02-01", LastUpdated: "2024-02-01",
			CustomFields: map[string]string{},
		},
	}
}

func TestEncodeDecode_AllFormats(t *testing.T) {
	for _, f := range []Format{JSON, JSONL, YAML, TOML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, f, sampleJobs()); err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}
			got, err := Decode(&buf, f)
			if err != nil {
				t.Fatalf("Decode() failed: %v\n%s", err, buf.String())
			}
			if len(got) != 2 {
				t.Fatalf("Decode() returned %d records, want 2", len(got))
			}
			if got[0].Company != "Acme" || got[0].Notes != "Line one\n\n**bold**" {
				t.Errorf("record 0 = %+v", got[0])
			}
			if got[0].CustomFields["ref"] != "Kim" {
				t.Errorf("custom field lost: %+v", got[0].CustomFields)
			}
			if got[1].Status != types.StatusApplied {
				t.Errorf("record 1 status = %q", got[1].Status)
			}
		})
	}
}

func TestEncode_JSONLOneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, JSONL, sampleJobs()); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("got %d lines, want 2", len(lines))
	}
}

func TestDecodeJSONL_InvalidLine(t *testing.T) {
	in := `{"id":"a","company":"A","role":"r","status":"Applied"}

{not json}
`
	_, err := Decode(strings.NewReader(in), JSONL)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("Decode() error = %v, want mention of line 3", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"out.json":    JSON,
		"out.ndjson":  JSONL,
		"backup.yml":  YAML,
		"backup.TOML": TOML,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("out.csv"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("FormatFromPath(csv) error = %v", err)
	}
}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(store.WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local) }))
	if err := s.BeginLoad(); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteLoad(nil); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestImport(t *testing.T) {
	s := setupStore(t)
	jobs := append(sampleJobs(), types.JobApplication{ID: "bad", Role: "No company", Status: types.StatusApplied})

	res := Import(s, jobs, ImportOptions{})
	if res.Imported != 2 || res.Skipped != 1 {
		t.Fatalf("Import() = %+v, want 2 imported, 1 skipped", res)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Errors = %v", res.Errors)
	}

	got := s.Jobs()
	if len(got) != 2 {
		t.Fatalf("store has %d records, want 2", len(got))
	}
	if got[0].Company != "Acme" || got[1].Company != "Globex" {
		t.Errorf("file order not kept: %s, %s", got[0].Company, got[1].Company)
	}
	if got[0].ID == "a" {
		t.Error("imported record kept its old id")
	}
	if got[0].DateApplied != "2024-01-01" {
		t.Errorf("DateApplied = %q, want kept", got[0].DateApplied)
	}
	if got[0].LastUpdated != "2024-05-01" {
		t.Errorf("LastUpdated = %q, want today", got[0].LastUpdated)
	}
}

func TestImport_DryRun(t *testing.T) {
	s := setupStore(t)
	res := Import(s, sampleJobs(), ImportOptions{DryRun: true})
	if res.Imported != 2 {
		t.Errorf("Imported = %d, want 2", res.Imported)
	}
	if s.Len() != 0 {
		t.Errorf("dry run created %d records", s.Len())
	}
}

func TestExportFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.yaml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := Encode(f, YAML, sampleJobs()); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	format, _ := FormatFromPath(path)
	got, err := Decode(in, format)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records", len(got))
	}
}

func TestImport_ErrorsInFileOrder(t *testing.T) {
	jobs := []types.JobApplication{
		{Company: "", Role: "First bad", Status: types.StatusApplied},
		{Company: "Acme", Role: "Engineer", Status: types.StatusApplied},
		{Company: "Globex", Role: "", Status: types.StatusApplied},
		{Company: "Initech", Role: "", Status: types.StatusApplied},
	}
	for _, dry := range []bool{false, true} {
		res := Import(setupStore(t), jobs, ImportOptions{DryRun: dry})
		if len(res.Errors) != 3 {
			t.Fatalf("dry=%v: Errors = %v, want 3", dry, res.Errors)
		}
		for i, prefix := range []string{"record 1 ", "record 3 ", "record 4 "} {
			if !strings.HasPrefix(res.Errors[i], prefix) {
				t.Errorf("dry=%v: Errors[%d] = %q, want prefix %q", dry, i, res.Errors[i], prefix)
			}
		}
	}
}
