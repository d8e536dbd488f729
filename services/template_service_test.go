package services

import (
	"os"
	"path/filepath"
	"testing"

	"bulk-email-sender/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRender_Default(t *testing.T) {
	s, err := NewTemplateService(models.EmailConfig{
		Email:       "victoria@example.com",
		SenderName:  "Victoria",
		CompanyName: "Fadac Resources",
		LogoURL:     "https://example.com/logo.png",
	})
	require.NoError(t, err)

	html, err := s.Render("Alice", "a@x.com")
	require.NoError(t, err)

	assert.Contains(t, html, "<p>Dear Alice,</p>")
	assert.Contains(t, html, "<strong>Victoria</strong><br>victoria@example.com")
	assert.Contains(t, html, `<img src="https://example.com/logo.png"`)
	assert.Contains(t, html, "Confidentiality:")
}

func TestRender_EscapesName(t *testing.T) {
	s, err := NewTemplateService(models.EmailConfig{Email: "me@example.com"})
	require.NoError(t, err)

	html, err := s.Render(`<script>alert(1)</script>`, "x@x.com")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRender_SenderFallsBackToEmail(t *testing.T) {
	s, err := NewTemplateService(models.EmailConfig{Email: "me@example.com"})
	require.NoError(t, err)

	html, err := s.Render("Bob", "b@x.com")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>me@example.com</strong>")
	assert.NotContains(t, html, "<img")
}

func TestRender_HTMLFile(t *testing.T) {
	path := writeTemplate(t, "body.html", `<p>Hi {{.Name}} ({{.Email}})</p>`)

	s, err := NewTemplateService(models.EmailConfig{TemplateFile: path})
	require.NoError(t, err)

	html, err := s.Render("Cara", "c@x.com")
	require.NoError(t, err)
	assert.Contains(t, html, "<p>Hi Cara (c@x.com)</p>")
}

func TestRender_MarkdownFileIsSanitized(t *testing.T) {
	path := writeTemplate(t, "body.md", "Hello **{{.Name}}**\n\n<script>evil()</script>\n")

	s, err := NewTemplateService(models.EmailConfig{TemplateFile: path})
	require.NoError(t, err)

	html, err := s.Render("Dana", "d@x.com")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>Dana</strong>")
	assert.NotContains(t, html, "evil()")
}

func TestNewTemplateService_Errors(t *testing.T) {
	_, err := NewTemplateService(models.EmailConfig{TemplateFile: filepath.Join(t.TempDir(), "missing.html")})
	assert.Error(t, err)

	path := writeTemplate(t, "broken.html", "{{.Name")
	_, err = NewTemplateService(models.EmailConfig{TemplateFile: path})
	assert.ErrorIs(t, err, ErrRenderFailed)
}
