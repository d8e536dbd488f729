// Package ledger holds the recipient table of a sending session and tracks
// which rows have already been sent.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// StatusSent marks a row as already handled.
const StatusSent = "SENT"

// RequiredColumns lists the header cells every uploaded table must carry.
var RequiredColumns = []string{"Name", "Email", "Status"}

// Row is a view of one recipient record.
type Row struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// Ledger is the in-memory recipient table. It is not safe for concurrent use;
// callers serialize access per session.
type Ledger struct {
	header  []string
	records [][]string

	nameCol   int
	emailCol  int
	statusCol int
}

// NormalizeStatus trims and upper-cases a status cell.
func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var utf8BOM = []byte("\ufeff")

// Load reads a comma-separated table with a header row. A leading UTF-8 byte
// order mark is skipped.
func Load(r io.Reader) (*Ledger, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &MissingColumnError{Missing: append([]string(nil), RequiredColumns...)}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv records: %w", err)
	}

	return build(header, records, cols), nil
}

// New builds a ledger from an already parsed table. The inputs are copied.
func New(header []string, records [][]string) (*Ledger, error) {
	cols, err := locateColumns(header)
	if err != nil {
		return nil, err
	}
	return build(copyRecord(header), copyRecords(records), cols), nil
}

func locateColumns(header []string) ([3]int, error) {
	cols := [3]int{-1, -1, -1}
	for i, cell := range header {
		for j, want := range RequiredColumns {
			if cols[j] == -1 && strings.EqualFold(strings.TrimSpace(cell), want) {
				cols[j] = i
			}
		}
	}

	var missing []string
	for j, idx := range cols {
		if idx == -1 {
			missing = append(missing, RequiredColumns[j])
		}
	}
	if len(missing) > 0 {
		return cols, &MissingColumnError{Missing: missing}
	}
	return cols, nil
}

func build(header []string, records [][]string, cols [3]int) *Ledger {
	l := &Ledger{
		header:    header,
		records:   make([][]string, 0, len(records)),
		nameCol:   cols[0],
		emailCol:  cols[1],
		statusCol: cols[2],
	}
	for _, rec := range records {
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		}
		rec[l.statusCol] = NormalizeStatus(rec[l.statusCol])
		l.records = append(l.records, rec)
	}
	return l
}

func (l *Ledger) row(i int) Row {
	rec := l.records[i]
	return Row{
		Index:  i,
		Name:   rec[l.nameCol],
		Email:  rec[l.emailCol],
		Status: rec[l.statusCol],
	}
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Rows returns every row in table order.
func (l *Ledger) Rows() []Row {
	rows := make([]Row, 0, len(l.records))
	for i := range l.records {
		rows = append(rows, l.row(i))
	}
	return rows
}

// Pending returns the rows not yet marked sent, in table order.
func (l *Ledger) Pending() []Row {
	var rows []Row
	for i, rec := range l.records {
		if rec[l.statusCol] != StatusSent {
			rows = append(rows, l.row(i))
		}
	}
	return rows
}

// MarkSent sets the status of every row whose email equals email exactly.
// It returns the number of rows updated; zero is not an error.
func (l *Ledger) MarkSent(email string) int {
	n := 0
	for _, rec := range l.records {
		if rec[l.emailCol] == email {
			rec[l.statusCol] = StatusSent
			n++
		}
	}
	return n
}

// Counts returns the total, sent and pending row counts.
func (l *Ledger) Counts() (total, sent, pending int) {
	for _, rec := range l.records {
		if rec[l.statusCol] == StatusSent {
			sent++
		}
	}
	total = len(l.records)
	return total, sent, total - sent
}

// Table returns copies of the header and of every record.
func (l *Ledger) Table() (header []string, records [][]string) {
	return copyRecord(l.header), copyRecords(l.records)
}

// Export writes the full table, sent and pending rows alike, as CSV.
func (l *Ledger) Export(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(l.header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(l.records); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

func copyRecord(rec []string) []string {
	return append([]string(nil), rec...)
}

func copyRecords(records [][]string) [][]string {
	out := make([][]string, len(records))
	for i, rec := range records {
		out[i] = copyRecord(rec)
	}
	return out
}
