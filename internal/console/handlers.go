package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carbonseed.io/console/internal/audit"
	"carbonseed.io/console/internal/console/views"
	"carbonseed.io/console/internal/datasource"
	"carbonseed.io/console/internal/ingest"
	"carbonseed.io/console/internal/session"
	"carbonseed.io/console/pkg/api"
)

// Login messages.
const (
	MsgBadCredentials = "Invalid email or password"
	MsgLoginFailed    = "Login failed"
)

const (
	maxUploadSize = 10 << 20
	historyLimit  = 10
)

type loginForm struct {
	Email    string `schema:"email"`
	Password string `schema:"password"`
}

type roleForm struct {
	Role string `schema:"role"`
}

// handleLanding serves the public landing page.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "landing", views.Landing())
}

// handleLoginPage serves the sign-in form.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", views.Login("", ""))
}

// handleLogin exchanges the submitted credentials for a token and starts
// the session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := s.decoder.Decode(&form, r.PostForm); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	tok, err := s.backend.Login(r.Context(), api.Credentials{
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
	})
	if err != nil {
		msg, status := MsgBadCredentials, http.StatusUnauthorized
		if api.IsTransport(err) {
			msg, status = MsgLoginFailed, http.StatusBadGateway
		}
		s.logger.Info("login failed", "email", form.Email, "error", err)
		s.render(w, r, status, "login", views.Login(form.Email, msg))
		return
	}

	s.sessions.Begin(w, tok.AccessToken)
	session.Redirect(w, r, session.DefaultPath)
}

// handleLogout ends the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(w)
	session.Redirect(w, r, session.LoginPath)
}

func tab(r *http.Request, allowed []string) string {
	t := r.URL.Query().Get("tab")
	for _, a := range allowed {
		if a == t {
			return t
		}
	}
	return views.TabOverview
}

// handleDashboard serves the dashboard screen.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := session.IdentityFrom(r.Context())
	now := s.now()
	t := tab(r, views.DashboardTabs)

	var collections []datasource.Collection
	switch t {
	case views.TabDevices:
		collections = []datasource.Collection{datasource.Devices}
	case views.TabAlerts:
		collections = []datasource.Collection{datasource.Alerts}
	default:
		collections = []datasource.Collection{
			datasource.Latest, datasource.Devices, datasource.TimeSeries, datasource.Alerts,
		}
	}

	snap := s.loader.Load(r.Context(), s.remote(id), s.placeholder(now), collections...)

	s.render(w, r, http.StatusOK, "dashboard", views.DashboardPage(views.Dashboard{
		Now:     now,
		Online:  datasource.BySeen(now, s.threshold()),
		User:    id.User,
		Tab:     t,
		Latest:  snap.Latest,
		Series:  snap.Series,
		Devices: snap.Devices,
		Alerts:  snap.Alerts,
	}))
}

// handleReport downloads a generated report as an indented JSON file.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, _ := session.IdentityFrom(r.Context())
	reportType := r.PathValue("type")
	if !api.ValidReportType(reportType) {
		http.Error(w, "Unknown report type", http.StatusNotFound)
		return
	}

	report, err := s.backend.Report(r.Context(), id.Token, reportType)
	if err != nil {
		s.logger.Error("failed to fetch report", "type", reportType, "error", err)
		http.Error(w, "Failed to generate report", http.StatusBadGateway)
		return
	}

	var out bytes.Buffer
	if err := json.Indent(&out, report, "", "  "); err != nil {
		s.logger.Error("report is not valid JSON", "type", reportType, "error", err)
		http.Error(w, "Failed to generate report", http.StatusBadGateway)
		return
	}
	out.WriteByte('\n')

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="carbonseed-%s-report.json"`, reportType))
	w.WriteHeader(http.StatusOK)
	if _, err := out.WriteTo(w); err != nil {
		s.logger.Debug("failed to write report", "error", err)
	}
}

// handleAdmin serves the admin screen.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	id, _ := session.IdentityFrom(r.Context())
	t := tab(r, views.AdminTabs)

	var collections []datasource.Collection
	switch t {
	case views.TabUsers:
		collections = []datasource.Collection{datasource.Users}
	case views.TabFactories:
		collections = []datasource.Collection{datasource.Factories, datasource.Devices, datasource.Users}
	case views.TabDevices:
		collections = []datasource.Collection{datasource.Devices}
	case views.TabData:
	default:
		collections = []datasource.Collection{datasource.Users, datasource.Factories, datasource.Devices}
	}

	var snap *datasource.Snapshot
	if len(collections) > 0 {
		snap = s.loader.Load(r.Context(), s.remote(id), s.placeholder(s.now()), collections...)
	} else {
		snap = &datasource.Snapshot{}
	}

	page := views.Admin{
		User:         id.User,
		Tab:          t,
		Users:        snap.Users,
		Factories:    snap.Factories,
		Devices:      snap.Devices,
		Upload:       ingest.Form{Kind: ingest.KindDevices},
		AuditEnabled: s.audit.Enabled(),
	}
	if t == views.TabData {
		page.History = s.uploadHistory(r)
	}

	s.render(w, r, http.StatusOK, "admin", views.AdminPage(page))
}

// handleRoleChange applies a role to a user and answers with the updated
// table row. The row shows the new role whatever the backend answered.
func (s *Server) handleRoleChange(w http.ResponseWriter, r *http.Request) {
	id, _ := session.IdentityFrom(r.Context())

	userID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || userID <= 0 {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var form roleForm
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := s.decoder.Decode(&form, r.PostForm); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	role, err := api.ParseRole(form.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome, message := "success", ""
	if err := s.backend.UpdateUserRole(r.Context(), id.Token, userID, role); err != nil {
		outcome, message = "failed", err.Error()
		s.logger.Warn("role change not confirmed by backend", "user_id", userID, "role", string(role), "error", err)
	} else {
		s.logger.Info("role changed", "user_id", userID, "role", string(role), "by", id.User.Email)
	}
	if s.metrics != nil {
		s.metrics.RoleChanges.WithLabelValues(outcome).Inc()
	}
	s.record(r, &audit.Entry{
		Action:  audit.ActionRoleChange,
		Actor:   id.User.Email,
		Kind:    string(role),
		Target:  strconv.Itoa(userID),
		Outcome: outcome,
		Message: message,
	})

	snap := s.loader.Load(r.Context(), s.remote(id), s.placeholder(s.now()), datasource.Users)
	users := datasource.ApplyRole(snap.Users, userID, role)
	user, ok := datasource.FindUser(users, userID)
	if !ok {
		user = api.User{ID: userID, Role: role}
	}

	s.render(w, r, http.StatusOK, "user_row", views.UserRow(user))
}

// handleUploadFile loads a chosen file into the upload buffer.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	form := s.uploadForm(r)

	file, _, err := r.FormFile("file")
	if err != nil {
		form.SelectFile(nil)
	} else {
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		form.SelectFile(content)
	}

	s.render(w, r, http.StatusOK, "upload_panel", views.UploadPanel(form, s.uploadHistory(r), s.audit.Enabled()))
}

// handleUpload submits the upload buffer.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, _ := session.IdentityFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	form := s.uploadForm(r)

	st := s.submitter.Submit(r.Context(), id.Token, &form)
	s.record(r, &audit.Entry{
		Action:  audit.ActionUpload,
		Actor:   id.User.Email,
		Kind:    string(form.Kind),
		Outcome: string(st.Outcome),
		Message: st.Message,
		Created: st.Created,
		Demo:    st.Demo,
	})

	s.render(w, r, http.StatusOK, "upload_panel", views.UploadPanel(form, s.uploadHistory(r), s.audit.Enabled()))
}

// uploadForm decodes the panel fields. An unknown kind falls back to
// devices.
func (s *Server) uploadForm(r *http.Request) ingest.Form {
	var form ingest.Form
	if err := s.decoder.Decode(&form, r.PostForm); err != nil {
		s.logger.Debug("failed to decode upload form", "error", err)
	}
	kind, err := ingest.ParseKind(string(form.Kind))
	if err != nil {
		kind = ingest.KindDevices
	}
	form.Kind = kind
	return form
}

func (s *Server) uploadHistory(r *http.Request) []audit.Entry {
	if !s.audit.Enabled() {
		return nil
	}
	entries, err := s.audit.Recent(r.Context(), audit.ActionUpload, historyLimit)
	if err != nil {
		s.logger.Error("failed to list upload history", "error", err)
		return nil
	}
	return entries
}

func (s *Server) record(r *http.Request, e *audit.Entry) {
	if err := s.audit.Record(r.Context(), e); err != nil {
		s.logger.Error("failed to record audit entry", "action", string(e.Action), "error", err)
	}
}

// handleHealth serves health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}

func (s *Server) remote(id session.Identity) datasource.Source {
	return datasource.NewRemote(s.backend, id.Token)
}

func (s *Server) placeholder(now time.Time) datasource.Source {
	return datasource.NewPlaceholder(now, s.config.PlaceholderSeed)
}

func (s *Server) threshold() time.Duration {
	if s.config.OnlineThreshold > 0 {
		return s.config.OnlineThreshold
	}
	return datasource.DefaultFreshness
}
