package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bulk-email-sender/ledger"
	"bulk-email-sender/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailer struct {
	sent     []string
	rendered []string
	fail     map[string]error
}

func (s *stubMailer) Send(_ context.Context, row ledger.Row) error {
	s.sent = append(s.sent, row.Email)
	return s.fail[row.Email]
}

func (s *stubMailer) Render(name, _ string) (string, error) {
	s.rendered = append(s.rendered, name)
	return "<p>" + name + "</p>", nil
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipients.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRunBatch_WritesBackInPlace(t *testing.T) {
	path := writeCSV(t, "Name,Email,Status\nAlice,a@x.com,\nBob,b@x.com,sent\nCara,c@x.com,\n")
	reportPath := filepath.Join(filepath.Dir(path), "report.csv")
	m := &stubMailer{fail: map[string]error{"c@x.com": errors.New("550 no such user")}}

	report, err := runBatch(context.Background(), m, m, batchOptions{CSVPath: path, ReportPath: reportPath}, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com", "c@x.com"}, m.sent)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "Name,Email,Status\nAlice,a@x.com,SENT\nBob,b@x.com,SENT\nCara,c@x.com,\n", readFile(t, path))

	lines := strings.Split(strings.TrimSpace(readFile(t, reportPath)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "Cara,c@x.com,FAILED,550 no such user,"))
}

func TestRunBatch_SeparateOutput(t *testing.T) {
	input := "Name,Email,Status\nAlice,a@x.com,\n"
	path := writeCSV(t, input)
	out := filepath.Join(t.TempDir(), "updated.csv")
	m := &stubMailer{}

	_, err := runBatch(context.Background(), m, m, batchOptions{CSVPath: path, OutPath: out}, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, input, readFile(t, path))
	assert.Equal(t, "Name,Email,Status\nAlice,a@x.com,SENT\n", readFile(t, out))
}

func TestRunBatch_DryRun(t *testing.T) {
	input := "Name,Email,Status\nAlice,a@x.com,\nBob,b@x.com,SENT\n"
	path := writeCSV(t, input)
	m := &stubMailer{}

	report, err := runBatch(context.Background(), m, m, batchOptions{CSVPath: path, DryRun: true}, logger.Nop())
	require.NoError(t, err)

	assert.Empty(t, m.sent)
	assert.Equal(t, []string{"Alice"}, m.rendered)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, input, readFile(t, path))
}

func TestRunBatch_MissingColumn(t *testing.T) {
	path := writeCSV(t, "Name,Email\nAlice,a@x.com\n")
	m := &stubMailer{}

	_, err := runBatch(context.Background(), m, m, batchOptions{CSVPath: path}, logger.Nop())
	assert.ErrorIs(t, err, ledger.ErrMissingColumn)
	assert.Empty(t, m.sent)
}

func TestRunBatch_KeepsFileMode(t *testing.T) {
	path := writeCSV(t, "Name,Email,Status\nAlice,a@x.com,\n")
	require.NoError(t, os.Chmod(path, 0o640))
	m := &stubMailer{}

	_, err := runBatch(context.Background(), m, m, batchOptions{CSVPath: path}, logger.Nop())
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.Equal(t, "Name,Email,Status\nAlice,a@x.com,SENT\n", readFile(t, path))
}

func TestWriteFileAtomic_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")

	err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "x\n")
		return err
	})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	assert.Equal(t, "x\n", readFile(t, path))
}
