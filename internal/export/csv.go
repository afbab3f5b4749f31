// Package export renders interaction rows as CSV and XLSX downloads.
package export

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bakame-ai/interaction-logs/internal/interaction"
)

// ErrEmptyExport is returned when there are no rows to export. Nothing is written.
var ErrEmptyExport = errors.New("no rows to export")

// Header is the fixed CSV column order.
var Header = []string{
	"Timestamp",
	"Call SID",
	"Phone Number",
	"Event Type",
	"User Message",
	"AI Response",
	"Call Status",
	"Location",
	"Interactions",
	"Time Used",
	"Topic Discussed",
	"OpenAI Model",
	"Tokens Used",
	"Cost (USD)",
}

// TimestampLayout mirrors the en-US locale date/time rendering used by the dashboard.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

// FileNamePrefix prefixes every exported file name.
const FileNamePrefix = "bakame_ai_logs_"

// FileName returns the export file name for the given ISO date (YYYY-MM-DD).
func FileName(date string) string {
	return FileNamePrefix + date + ".csv"
}

// DateStamp returns the ISO date used in export file names.
func DateStamp(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// EscapeField quotes a field only when it contains a comma, a double quote or a newline,
// doubling internal double quotes.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Formatter renders row values for export.
type Formatter struct {
	loc     *time.Location
	printer *message.Printer
}

// NewFormatter returns a formatter that renders timestamps in loc (time.Local when nil).
// A Formatter is not safe for concurrent use.
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{loc: loc, printer: message.NewPrinter(language.English)}
}

// Timestamp renders the row timestamp in the formatter's zone.
// Unparseable timestamps are emitted as received.
func (f *Formatter) Timestamp(r interaction.Row) string {
	if r.At.IsZero() {
		return interaction.Text(r.Timestamp)
	}
	return r.At.In(f.loc).Format(TimestampLayout)
}

// Count renders an integer with thousands separators.
func (f *Formatter) Count(n int64) string {
	return f.printer.Sprintf("%d", n)
}

// Cost renders a USD amount with six fixed decimals.
func Cost(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Record returns the unescaped column values for one row, in Header order.
func (f *Formatter) Record(r interaction.Row) []string {
	return []string{
		f.Timestamp(r),
		interaction.Text(r.CallSID),
		interaction.Text(r.FromNumber),
		interaction.Text(r.EventType),
		interaction.Text(r.UserMessage),
		interaction.Text(r.AIResponse),
		interaction.Text(r.CallStatus),
		interaction.Text(r.Location),
		f.Count(r.Interactions),
		r.TimeUsed(),
		interaction.Text(r.Topic),
		interaction.Text(r.OpenAIModel),
		f.Count(r.TokensUsed),
		Cost(r.CostUSD),
	}
}

// WriteCSV writes the header and one line per row. Lines are separated by "\n" with no
// trailing newline. Rows are written in the order given (exports use ascending order).
func WriteCSV(w io.Writer, rows []interaction.Row, loc *time.Location) error {
	if len(rows) == 0 {
		return ErrEmptyExport
	}
	f := NewFormatter(loc)
	bw := bufio.NewWriter(w)

	writeLine(bw, Header)
	for _, r := range rows {
		_ = bw.WriteByte('\n')
		writeLine(bw, f.Record(r))
	}
	return bw.Flush()
}

func writeLine(bw *bufio.Writer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			_ = bw.WriteByte(',')
		}
		_, _ = bw.WriteString(EscapeField(field))
	}
}

// Exporter writes CSV exports into a directory.
type Exporter struct {
	dir string

	mu  sync.RWMutex
	loc *time.Location
}

// NewExporter creates an exporter writing into dir with timestamps rendered in loc.
func NewExporter(dir string, loc *time.Location) *Exporter {
	if dir == "" {
		dir = "."
	}
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{dir: dir, loc: loc}
}

// Location returns the zone timestamps are rendered in.
func (e *Exporter) Location() *time.Location {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loc
}

// SetLocation changes the zone used by subsequent exports.
func (e *Exporter) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	e.mu.Lock()
	e.loc = loc
	e.mu.Unlock()
}

// ExportCSV writes rows to <dir>/bakame_ai_logs_<filenameDate>.csv and returns the path.
// An empty row set returns ErrEmptyExport. The file is replaced atomically, so a failed
// export never leaves a partial file behind.
func (e *Exporter) ExportCSV(rows []interaction.Row, filenameDate string) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptyExport
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, e.Location()); err != nil {
		return "", fmt.Errorf("render csv export: %w", err)
	}

	path := filepath.Join(e.dir, FileName(filenameDate))
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"path": path,
		"rows": len(rows),
	}).Info("interaction log exported")
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "export-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if n, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp export: %w", err)
	} else if n != len(data) {
		cleanup()
		return fmt.Errorf("write temp export: short write (%d/%d)", n, len(data))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp export: %w", err)
	}
	_ = os.Chmod(tmpPath, 0o644)

	if err := os.Rename(tmpPath, path); err != nil {
		// Windows rename may fail when the destination exists.
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("replace export file: %w", err2)
		}
	}
	return nil
}
