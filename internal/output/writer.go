// Package output provides consistent CLI output formatting for search
// results, version diffs, and changelog listings.
package output

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/chuanqiong/sdex/internal/changelog"
	"github.com/chuanqiong/sdex/internal/diff"
	"github.com/chuanqiong/sdex/internal/sde"
	"github.com/chuanqiong/sdex/internal/search"
)

var jsonOut = jsoniter.ConfigCompatibleWithStandardLibrary

// Resolver maps an entity ID to a display name. A nil Resolver leaves
// IDs unresolved.
type Resolver func(id int64) string

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer, enabling color when the destination is a
// terminal and NO_COLOR is not set.
func New(out io.Writer) *Writer {
	if IsTTY(out) && !DetectNoColor() {
		return &Writer{out: out, styles: DefaultStyles()}
	}
	return NewPlain(out)
}

// NewPlain creates a Writer with color disabled.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	data, err := jsonOut.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w.out, string(data))
	return nil
}

// SearchResults renders a ranked result list, one line per hit.
func (w *Writer) SearchResults(results []search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("no results"))
		return
	}

	for i, r := range results {
		line := fmt.Sprintf("%2d. %s  %s",
			i+1,
			w.styles.ID.Render(fmt.Sprintf("%-10d", r.ID)),
			w.styles.Name.Render(r.PrimaryName))
		if r.SecondaryName != "" && r.SecondaryName != r.PrimaryName {
			line += "  " + w.styles.Dim.Render(r.SecondaryName)
		}
		line += "  " + w.styles.Label.Render(fmt.Sprintf("[%s, score %d]", r.Category, r.Score))
		_, _ = fmt.Fprintln(w.out, line)
	}
}

// DiffSummary renders per-kind counts for a version pair.
func (w *Writer) DiffSummary(d *diff.VersionDiff) {
	s := d.Summarize()
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(
		fmt.Sprintf("%s -> %s", d.OldVersion, d.NewVersion)))
	_, _ = fmt.Fprintf(w.out, "  %s  %s  %s  %s\n",
		w.styles.Added.Render(fmt.Sprintf("+%d added", s.Added)),
		w.styles.Removed.Render(fmt.Sprintf("-%d removed", s.Removed)),
		w.styles.Modified.Render(fmt.Sprintf("~%d modified", s.Modified)),
		w.styles.Dim.Render(fmt.Sprintf("=%d unchanged", s.Unchanged)))
}

// DiffRecords renders the changed records of a diff, skipping unchanged
// entities. A resolver supplies display names next to the IDs.
func (w *Writer) DiffRecords(d *diff.VersionDiff, resolve Resolver) {
	for _, rec := range d.Records {
		if rec.Kind == diff.KindUnchanged {
			continue
		}

		label := fmt.Sprintf("%d", rec.EntityID)
		if resolve != nil {
			if name := resolve(rec.EntityID); name != "" {
				label = fmt.Sprintf("%d %s", rec.EntityID, name)
			}
		}

		switch rec.Kind {
		case diff.KindAdded:
			_, _ = fmt.Fprintln(w.out, w.styles.Added.Render("+ "+label))
		case diff.KindRemoved:
			_, _ = fmt.Fprintln(w.out, w.styles.Removed.Render("- "+label))
		case diff.KindModified:
			_, _ = fmt.Fprintln(w.out, w.styles.Modified.Render("~ "+label))
			for _, fd := range rec.Deltas {
				_, _ = fmt.Fprintf(w.out, "    %s: %s -> %s\n",
					w.styles.Label.Render(fd.Path),
					renderSide(fd.Old), renderSide(fd.New))
			}
		}
	}
}

// ChangelogEntries renders the recorded changesets, one line each.
func (w *Writer) ChangelogEntries(entries []changelog.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("no changesets recorded"))
		return
	}

	for _, e := range entries {
		_, _ = fmt.Fprintf(w.out, "%s  %s\n",
			w.styles.Header.Render(fmt.Sprintf("%s -> %s", e.OldVersion, e.NewVersion)),
			w.styles.Label.Render(fmt.Sprintf("+%d -%d ~%d =%d  %s",
				e.Summary.Added, e.Summary.Removed, e.Summary.Modified, e.Summary.Unchanged,
				e.CreatedAt.Format("2006-01-02 15:04"))))
	}
}

// renderSide formats one side of a field delta. An absent side renders
// as "(none)".
func renderSide(v *sde.Value) string {
	if v == nil {
		return "(none)"
	}
	s := v.EncodeJSON()
	// Truncate on a rune boundary; names here are often CJK.
	if r := []rune(s); len(r) > 120 {
		s = string(r[:117]) + "..."
	}
	return s
}
