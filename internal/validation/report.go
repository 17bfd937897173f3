package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Format represents the output format for batch validation reports.
type Format string

const (
	// FormatText renders a human-readable report.
	FormatText Format = "text"
	// FormatTSV renders a tab-delimited tabular report.
	FormatTSV Format = "tsv"
	// FormatJSON renders a machine-readable report.
	FormatJSON Format = "json"
)

// IsValid returns true if the format is recognized.
func (f Format) IsValid() bool {
	switch f {
	case FormatText, FormatTSV, FormatJSON:
		return true
	default:
		return false
	}
}

// String returns the string representation of the format.
func (f Format) String() string { return string(f) }

// ParseFormat parses a string into a Format.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(s)))
	if !format.IsValid() {
		return "", fmt.Errorf("unsupported format %q (valid: text, tsv, json)", s)
	}
	return format, nil
}

// Render writes the batch result to w in the given format.
func Render(w io.Writer, batch *BatchResult, format Format) error {
	switch format {
	case FormatText:
		return renderText(w, batch)
	case FormatTSV:
		return renderTSV(w, batch)
	case FormatJSON:
		return renderJSON(w, batch)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func renderText(w io.Writer, batch *BatchResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for _, r := range batch.Results {
		status := "ok"
		if !r.IsValid {
			status = "INVALID"
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Path, status)
		for _, msg := range r.Errors {
			fmt.Fprintf(tw, "  error: %s\n", msg)
		}
		for _, msg := range r.Warnings {
			fmt.Fprintf(tw, "  warning: %s\n", msg)
		}
	}
	for _, f := range batch.Failed {
		fmt.Fprintf(tw, "%s\tFAILED: %v\n", f.Path, f.Err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := batch.Summary
	if _, err := fmt.Fprintf(w, "\nValidated %d document(s): %d valid, %d invalid, %d failed, %d warning(s)\n",
		s.Total, s.Valid, s.Invalid, s.Failed, s.Warnings); err != nil {
		return err
	}
	if len(s.Tags) > 0 {
		if _, err := fmt.Fprintf(w, "Tags: %s\n", strings.Join(s.Tags, " ")); err != nil {
			return err
		}
	}
	if len(s.Languages) > 0 {
		if _, err := fmt.Fprintf(w, "Languages: %s\n", strings.Join(s.Languages, " ")); err != nil {
			return err
		}
	}
	return nil
}

func renderTSV(w io.Writer, batch *BatchResult) error {
	var sb strings.Builder

	sb.WriteString("path\tvalid\terrors\twarnings\n")
	for _, r := range batch.Results {
		sb.WriteString(fmt.Sprintf("%s\t%t\t%d\t%d\n",
			r.Path, r.IsValid, len(r.Errors), len(r.Warnings)))
	}
	for _, f := range batch.Failed {
		sb.WriteString(fmt.Sprintf("%s\tfailed\t1\t0\n", f.Path))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// reportFile is the per-file JSON shape.
type reportFile struct {
	Path     string   `json:"path"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// report is the top-level JSON shape.
type report struct {
	Files  []reportFile `json:"files"`
	Failed []struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	} `json:"failed,omitempty"`
	Summary struct {
		Total     int      `json:"total"`
		Valid     int      `json:"valid"`
		Invalid   int      `json:"invalid"`
		Failed    int      `json:"failed"`
		Warnings  int      `json:"warnings"`
		Tags      []string `json:"tags,omitempty"`
		Languages []string `json:"languages,omitempty"`
	} `json:"summary"`
}

func renderJSON(w io.Writer, batch *BatchResult) error {
	var rep report
	rep.Files = make([]reportFile, 0, len(batch.Results))
	for _, r := range batch.Results {
		rep.Files = append(rep.Files, reportFile{
			Path:     r.Path,
			Valid:    r.IsValid,
			Errors:   r.Errors,
			Warnings: r.Warnings,
		})
	}
	for _, f := range batch.Failed {
		rep.Failed = append(rep.Failed, struct {
			Path  string `json:"path"`
			Error string `json:"error"`
		}{Path: f.Path, Error: f.Err.Error()})
	}
	rep.Summary.Total = batch.Summary.Total
	rep.Summary.Valid = batch.Summary.Valid
	rep.Summary.Invalid = batch.Summary.Invalid
	rep.Summary.Failed = batch.Summary.Failed
	rep.Summary.Warnings = batch.Summary.Warnings
	rep.Summary.Tags = batch.Summary.Tags
	rep.Summary.Languages = batch.Summary.Languages

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rep)
}
