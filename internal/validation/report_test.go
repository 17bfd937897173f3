package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func sampleBatch() *BatchResult {
	batch := &BatchResult{
		Results: []*Result{
			{Path: "a.feature", IsValid: true},
			{Path: "b.feature", IsValid: false, Errors: []string{"feature has no scenarios"}},
			{Path: "c.feature", IsValid: true, Warnings: []string{"feature has no description"}},
		},
		Failed: []BatchFailure{
			{Path: "d.feature", Err: errors.New("read failed")},
		},
	}
	batch.Summary = summarize(batch)
	return batch
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"TSV", FormatTSV, false},
		{" json ", FormatJSON, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleBatch(), FormatText); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"error: feature has no scenarios",
		"warning: feature has no description",
		"FAILED: read failed",
		"Validated 4 document(s): 2 valid, 1 invalid, 1 failed, 1 warning(s)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	// The status column is aligned across rows.
	var okLine, invalidLine string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "a.feature"):
			okLine = line
		case strings.HasPrefix(line, "b.feature"):
			invalidLine = line
		}
	}
	if okLine == "" || invalidLine == "" {
		t.Fatalf("per-file rows missing:\n%s", out)
	}
	if strings.Index(okLine, "ok") != strings.Index(invalidLine, "INVALID") {
		t.Errorf("status column not aligned:\n%q\n%q", okLine, invalidLine)
	}
}

func TestRenderTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleBatch(), FormatTSV); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5 (header + 4 files)", len(lines))
	}
	if lines[0] != "path\tvalid\terrors\twarnings" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "b.feature\tfalse\t1\t0" {
		t.Errorf("invalid row = %q, want b.feature\\tfalse\\t1\\t0", lines[2])
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleBatch(), FormatJSON); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var rep struct {
		Files []struct {
			Path  string `json:"path"`
			Valid bool   `json:"valid"`
		} `json:"files"`
		Summary struct {
			Total   int `json:"total"`
			Invalid int `json:"invalid"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(rep.Files) != 3 {
		t.Errorf("files = %d, want 3", len(rep.Files))
	}
	if rep.Summary.Total != 4 || rep.Summary.Invalid != 1 {
		t.Errorf("summary = %+v, want total 4, invalid 1", rep.Summary)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleBatch(), Format("xml")); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
