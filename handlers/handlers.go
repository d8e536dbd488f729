package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"bulk-email-sender/ledger"
	"bulk-email-sender/middleware"
	"bulk-email-sender/models"
	"bulk-email-sender/services"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const maxUploadSize = 10 << 20

// Mailer composes, previews and sends recipient messages.
type Mailer interface {
	services.Sender
	services.Renderer
	Config() models.EmailConfig
	UpdateConfig(models.EmailConfig) error
}

type Handler struct {
	mailer       Mailer
	orchestrator *services.Orchestrator
	wsService    *services.WebSocketService
	sessions     *middleware.SessionManager
	workspaces   *services.WorkspaceStore
	upgrader     websocket.Upgrader
	templateDir  string
	logger       *slog.Logger
}

func NewHandler(mailer Mailer, wsService *services.WebSocketService, sessions *middleware.SessionManager,
	workspaces *services.WorkspaceStore, templateDir string, logger *slog.Logger) *Handler {
	return &Handler{
		mailer:       mailer,
		orchestrator: services.NewOrchestrator(mailer, logger),
		wsService:    wsService,
		sessions:     sessions,
		workspaces:   workspaces,
		templateDir:  templateDir,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes wires every endpoint. Everything except the login page and the login
// call requires a session.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(h.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/login", h.LoginPageHandler)
	r.Post("/api/login", h.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(h.sessions.RequireSession)

		r.Get("/", h.IndexHandler)
		r.Post("/logout", h.LogoutHandler)
		r.Get("/ws", h.WebSocketHandler)

		r.Get("/api/config", h.ConfigHandler)
		r.Post("/api/config", h.ConfigHandler)
		r.Post("/api/upload", h.UploadHandler)
		r.Get("/api/preview", h.PreviewHandler)
		r.Post("/api/send", h.SendHandler)
		r.Post("/api/send-all", h.SendAllHandler)
		r.Get("/api/export", h.ExportHandler)
		r.Get("/api/report", h.ReportHandler)
		r.Get("/api/recipients", h.RecipientsHandler)
		r.Get("/api/stats", h.StatsHandler)
		r.Post("/api/reset", h.ResetHandler)
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.APIResponse{Success: false, Error: msg})
}

func (h *Handler) workspace(r *http.Request) *services.Workspace {
	return h.workspaces.Get(middleware.SessionToken(r.Context()))
}

func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.templateDir, "index.html"))
}

func (h *Handler) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.templateDir, "login.html"))
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	if !h.sessions.ValidateCredentials(req.Username, req.Password) {
		h.logger.Warn("login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	session, err := h.sessions.CreateSession(req.Username)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "Logged in"})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.sessions.DeleteSession(middleware.SessionToken(r.Context()))
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.wsService.AddClient(middleware.SessionToken(r.Context()), conn)
	defer h.wsService.RemoveClient(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Handler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	current := h.mailer.Config()

	if r.Method == http.MethodPost {
		var newConfig models.EmailConfig
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		if newConfig.SMTPServer != "" {
			current.SMTPServer = newConfig.SMTPServer
		}
		if newConfig.SMTPPort != 0 {
			current.SMTPPort = newConfig.SMTPPort
		}
		if newConfig.Email != "" {
			current.Email = newConfig.Email
		}
		if newConfig.Password != "" {
			current.Password = newConfig.Password
		}
		if newConfig.SenderName != "" {
			current.SenderName = newConfig.SenderName
		}
		if newConfig.Provider != "" {
			provider := strings.ToLower(strings.TrimSpace(newConfig.Provider))
			if !services.KnownProvider(provider) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown provider %q", newConfig.Provider))
				return
			}
			current.Provider = provider
		}
		if newConfig.Subject != "" {
			current.Subject = newConfig.Subject
		}
		if newConfig.CompanyName != "" {
			current.CompanyName = newConfig.CompanyName
		}
		if newConfig.LogoURL != "" {
			current.LogoURL = newConfig.LogoURL
		}
		if newConfig.MailgunDomain != "" {
			current.MailgunDomain = newConfig.MailgunDomain
		}
		if newConfig.MailgunAPIKey != "" {
			current.MailgunAPIKey = newConfig.MailgunAPIKey
		}
		if newConfig.ResendAPIKey != "" {
			current.ResendAPIKey = newConfig.ResendAPIKey
		}
		if newConfig.ResendFromEmail != "" {
			current.ResendFromEmail = newConfig.ResendFromEmail
		}

		if err := h.mailer.UpdateConfig(current); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "Configuration updated"})
		return
	}

	writeJSON(w, http.StatusOK, models.ConfigResponse{
		SMTPServer:      current.SMTPServer,
		SMTPPort:        current.SMTPPort,
		Email:           current.Email,
		SenderName:      current.SenderName,
		Provider:        current.Provider,
		Subject:         current.Subject,
		CompanyName:     current.CompanyName,
		MailgunDomain:   current.MailgunDomain,
		ResendFromEmail: current.ResendFromEmail,
	})
}

func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.UploadResponse{Success: false, Error: "Upload error"})
		return
	}
	defer file.Close()

	l, err := ledger.Load(file)
	if err != nil {
		msg := "CSV read error: " + err.Error()
		var mce *ledger.MissingColumnError
		if errors.As(err, &mce) {
			msg = mce.Error()
		}
		writeJSON(w, http.StatusBadRequest, models.UploadResponse{Success: false, Error: msg})
		return
	}

	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()
	ws.Reset(header.Filename, l)

	total, _, pending := l.Counts()
	msg := fmt.Sprintf("Found %d unsent recipient(s)", pending)
	if pending == 0 {
		msg = "All emails are already sent!"
	}

	h.logger.Info("recipients loaded", "file", header.Filename, "rows", total, "pending", pending)
	writeJSON(w, http.StatusOK, models.UploadResponse{
		Success:  true,
		FileName: header.Filename,
		Count:    total,
		Pending:  pending,
		Message:  msg,
	})
}

func (h *Handler) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	if ws.Ledger == nil {
		writeError(w, http.StatusConflict, "Upload a CSV first")
		return
	}

	switch r.URL.Query().Get("move") {
	case "next":
		ws.Move(1)
	case "prev":
		ws.Move(-1)
	}

	row, pos, total, ok := ws.Current()
	if !ok {
		writeJSON(w, http.StatusOK, models.PreviewResponse{Success: true, Message: "All emails are already sent!"})
		return
	}

	html, err := h.mailer.Render(row.Name, row.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.PreviewResponse{
		Success:   true,
		Position:  pos + 1,
		Total:     total,
		Recipient: &row,
		HTML:      html,
	})
}

func (h *Handler) SendHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	if ws.Ledger == nil {
		writeError(w, http.StatusConflict, "Upload a CSV first")
		return
	}

	row, _, _, ok := ws.Current()
	if !ok {
		writeError(w, http.StatusConflict, "No unsent recipients")
		return
	}

	res := h.orchestrator.SendOne(r.Context(), ws.Ledger, row)
	if !res.OK() {
		writeJSON(w, http.StatusOK, models.SendResponse{
			Success: false,
			Result:  &res,
			Error:   fmt.Sprintf("Error sending to %s: %s", res.Email, res.Error),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.SendResponse{
		Success: true,
		Result:  &res,
		Message: fmt.Sprintf("Email sent to %s", res.Name),
	})
}

func (h *Handler) SendAllHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	if ws.Ledger == nil {
		writeError(w, http.StatusConflict, "Upload a CSV first")
		return
	}

	token := middleware.SessionToken(r.Context())
	report := h.orchestrator.SendPending(r.Context(), ws.Ledger, h.wsService.Progress(token))
	ws.LastReport = &report

	writeJSON(w, http.StatusOK, models.SendResponse{
		Success: true,
		Report:  &report,
		Message: fmt.Sprintf("%d emails sent successfully!", report.Sent),
	})
}

func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	if ws.Ledger == nil {
		writeError(w, http.StatusConflict, "Upload a CSV first")
		return
	}

	var buf bytes.Buffer
	if err := ws.Ledger.Export(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := "recipients.csv"
	if ws.FileName != "" {
		name = "updated_" + filepath.Base(ws.FileName)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

func (h *Handler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	if ws.LastReport == nil {
		writeError(w, http.StatusNotFound, "No bulk send has run in this session")
		return
	}

	var buf bytes.Buffer
	if err := services.WriteReport(&buf, ws.LastReport.Results); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="send_report.csv"`)
	w.Write(buf.Bytes())
}

func (h *Handler) RecipientsHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	recipients := []ledger.Row{}
	if ws.Ledger != nil {
		recipients = ws.Ledger.Rows()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"recipients": recipients,
	})
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	resp := models.StatsResponse{Success: true}
	if ws.Ledger != nil {
		resp.Total, resp.Sent, resp.Pending = ws.Ledger.Counts()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Lock()
	defer ws.Unlock()

	ws.Reset("", nil)
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "Workspace cleared"})
}
