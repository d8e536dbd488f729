package ledger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "Name,Email,Status\n" +
	"Alice,a@x.com,\n" +
	"Bob,b@x.com,sent\n" +
	"Cara,c@x.com,SENT\n"

func mustLoad(t *testing.T, data string) *Ledger {
	t.Helper()
	l, err := Load(strings.NewReader(data))
	require.NoError(t, err)
	return l
}

func exportString(t *testing.T, l *Ledger) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, l.Export(&buf))
	return buf.String()
}

func emails(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Email)
	}
	return out
}

func TestLoad_NormalizesStatus(t *testing.T) {
	l := mustLoad(t, "Name,Email,Status\nA,a@x.com,  sent \nB,b@x.com,Failed\nC,c@x.com,\n")

	rows := l.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "SENT", rows[0].Status)
	assert.Equal(t, "FAILED", rows[1].Status)
	assert.Equal(t, "", rows[2].Status)
}

func TestNormalizeStatus_Idempotent(t *testing.T) {
	for _, s := range []string{"", " sent", "Sent ", "pending", "  x  "} {
		once := NormalizeStatus(s)
		assert.Equal(t, once, NormalizeStatus(once), s)
	}
}

func TestLoad_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		missing []string
	}{
		{"no status", "Name,Email\nA,a@x.com\n", []string{"Status"}},
		{"no name and email", "Status,Other\nSENT,x\n", []string{"Name", "Email"}},
		{"empty input", "", []string{"Name", "Email", "Status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, l)
			assert.True(t, errors.Is(err, ErrMissingColumn))

			var mce *MissingColumnError
			require.ErrorAs(t, err, &mce)
			assert.Equal(t, tt.missing, mce.Missing)
		})
	}
}

func TestLoad_MissingColumnCheckedBeforeRecords(t *testing.T) {
	// The second line is malformed CSV; the column check must fail first.
	_, err := Load(strings.NewReader("Name,Email\n\"broken,a@x.com\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoad_HeaderCaseInsensitiveWithBOM(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		header []string
	}{
		{"plain header", "\ufeffname, EMAIL ,status\nAlice,a@x.com,\n", []string{"name", " EMAIL ", "status"}},
		{"quoted header", "\ufeff\"Name\",\"Email\",\"Status\"\nAlice,a@x.com,\n", []string{"Name", "Email", "Status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustLoad(t, tt.input)

			pending := l.Pending()
			require.Len(t, pending, 1)
			assert.Equal(t, "Alice", pending[0].Name)
			assert.Equal(t, "a@x.com", pending[0].Email)

			header, _ := l.Table()
			assert.Equal(t, tt.header, header)
		})
	}
}

func TestLoad_ShortRecordsArePadded(t *testing.T) {
	l := mustLoad(t, "Name,Email,Status\nAlice,a@x.com\n")

	pending := l.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "", pending[0].Status)
	assert.Equal(t, "Name,Email,Status\nAlice,a@x.com,\n", exportString(t, l))
}

func TestPending_PreservesOrder(t *testing.T) {
	l := mustLoad(t, "Name,Email,Status\nA,a@x.com,\nB,b@x.com,SENT\nC,c@x.com,failed\nD,d@x.com,\n")

	pending := l.Pending()
	assert.Equal(t, []string{"a@x.com", "c@x.com", "d@x.com"}, emails(pending))
	assert.Equal(t, []int{0, 2, 3}, []int{pending[0].Index, pending[1].Index, pending[2].Index})
}

func TestPending_ReflectsCurrentState(t *testing.T) {
	l := mustLoad(t, sampleCSV)

	first := l.Pending()
	l.MarkSent("a@x.com")

	assert.Len(t, first, 1, "earlier result must not be mutated")
	assert.Empty(t, l.Pending())
}

func TestMarkSent_RemovesFromPending(t *testing.T) {
	l := mustLoad(t, "Name,Email,Status\nA,a@x.com,\nB,b@x.com,\n")

	n := l.MarkSent("b@x.com")
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a@x.com"}, emails(l.Pending()))
	assert.Equal(t, "Name,Email,Status\nA,a@x.com,\nB,b@x.com,SENT\n", exportString(t, l))
}

func TestMarkSent_UpdatesAllMatches(t *testing.T) {
	l := mustLoad(t, "Name,Email,Status\nA,dup@x.com,\nB,other@x.com,\nC,dup@x.com,\n")

	assert.Equal(t, 2, l.MarkSent("dup@x.com"))
	assert.Equal(t, []string{"other@x.com"}, emails(l.Pending()))
}

func TestMarkSent_NoMatchIsNoop(t *testing.T) {
	l := mustLoad(t, sampleCSV)
	before := exportString(t, l)

	assert.Equal(t, 0, l.MarkSent("nobody@x.com"))
	assert.Equal(t, 0, l.MarkSent("A@X.COM"), "matching is exact")
	assert.Equal(t, before, exportString(t, l))
}

func TestExport_RoundTrip(t *testing.T) {
	input := "Email,Company,Name,Status\n" +
		"a@x.com,\"Acme, Inc\",Alice,SENT\n" +
		"b@x.com,Globex,Bob,\n"
	l := mustLoad(t, input)

	assert.Equal(t, input, exportString(t, l))

	again := mustLoad(t, exportString(t, l))
	assert.Equal(t, input, exportString(t, again))
}

func TestExport_IsPure(t *testing.T) {
	l := mustLoad(t, sampleCSV)
	first := exportString(t, l)
	assert.Equal(t, first, exportString(t, l))
	assert.Len(t, l.Pending(), 1)
}

func TestScenario_SendToPendingOnly(t *testing.T) {
	l := mustLoad(t, sampleCSV)

	pending := l.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "Alice", pending[0].Name)

	l.MarkSent("a@x.com")

	assert.Empty(t, l.Pending())
	assert.Equal(t, "Name,Email,Status\nAlice,a@x.com,SENT\nBob,b@x.com,SENT\nCara,c@x.com,SENT\n", exportString(t, l))
}

func TestCounts(t *testing.T) {
	l := mustLoad(t, sampleCSV)

	total, sent, pending := l.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, pending)
}

func TestNew_CopiesInput(t *testing.T) {
	header := []string{"Name", "Email", "Status"}
	records := [][]string{{"A", "a@x.com", " sent"}}

	l, err := New(header, records)
	require.NoError(t, err)

	records[0][1] = "changed@x.com"
	header[0] = "Changed"

	h, recs := l.Table()
	assert.Equal(t, []string{"Name", "Email", "Status"}, h)
	assert.Equal(t, [][]string{{"A", "a@x.com", "SENT"}}, recs)
	assert.Equal(t, " sent", records[0][2])
}

func TestNew_MissingColumn(t *testing.T) {
	_, err := New([]string{"Name"}, nil)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
