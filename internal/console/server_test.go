package console_test

import (
	"bytes"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/internal/audit"
	"carbonseed.io/console/internal/console"
	"carbonseed.io/console/internal/session"
	"carbonseed.io/console/pkg/api"
)

const newDevicePayload = `{"devices":[{"device_id":"ESP32-NEW-001","device_name":"New Sensor","factory_id":1}]}`

var _ = Describe("Console Server", func() {
	var (
		logger   *slog.Logger
		backend  *fakeBackend
		client   *api.Client
		recorder *memoryAudit
		server   *console.Server
		now      time.Time
	)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		return rec
	}

	signedIn := func(req *http.Request) *http.Request {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "test-token"})
		return req
	}

	postForm := func(target string, values url.Values) *http.Request {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	signInAs := func(role api.Role) {
		backend.reply("GET /auth/me", http.StatusOK, api.User{
			ID:       1,
			Email:    "lead@plant.example",
			FullName: "Shift Lead",
			Role:     role,
			IsActive: true,
		})
	}

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		backend = newFakeBackend()
		DeferCleanup(backend.Close)

		var err error
		client, err = api.NewClient(&api.ClientConfig{Logger: logger, BaseURL: backend.srv.URL})
		Expect(err).NotTo(HaveOccurred())

		recorder = &memoryAudit{}
		now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

		server, err = console.NewServer(&console.ServerConfig{
			Logger:       logger,
			Backend:      client,
			Audit:        recorder,
			Now:          func() time.Time { return now },
			HTTPPort:     8080,
			DemoFallback: true,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("should return error when config is nil", func() {
			s, err := console.NewServer(nil)
			Expect(err).To(MatchError("server config cannot be nil"))
			Expect(s).To(BeNil())
		})

		It("should return error when logger is nil", func() {
			_, err := console.NewServer(&console.ServerConfig{Backend: client})
			Expect(err).To(MatchError("logger cannot be nil"))
		})

		It("should return error when backend is nil", func() {
			_, err := console.NewServer(&console.ServerConfig{Logger: logger})
			Expect(err).To(MatchError("backend cannot be nil"))
		})

		It("should reject a negative session max age", func() {
			_, err := console.NewServer(&console.ServerConfig{
				Logger:  logger,
				Backend: client,
				Session: &session.Config{MaxAge: -time.Second},
			})
			Expect(err).To(MatchError(ContainSubstring("session max age cannot be negative")))
		})
	})

	Describe("public pages", func() {
		It("should report health", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"status":"ok"}`))
		})

		It("should render the landing page without touching the backend", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(rec.Body.String()).To(ContainSubstring("Steel &amp; Foundries"))
			Expect(rec.Body.String()).To(ContainSubstring("CBAM"))
			Expect(backend.Calls()).To(BeEmpty())
		})

		It("should expose Prometheus metrics", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("go_goroutines"))
		})

		It("should answer 404 for unknown paths", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("login", func() {
		It("should start a session and go to the dashboard", func() {
			backend.reply("POST /auth/login", http.StatusOK, api.Token{AccessToken: "fresh-token", TokenType: "bearer"})

			rec := serve(postForm("/login", url.Values{"email": {"lead@plant.example"}, "password": {"secret"}}))
			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/dashboard"))

			cookies := rec.Result().Cookies()
			Expect(cookies).To(HaveLen(1))
			Expect(cookies[0].Name).To(Equal(session.DefaultCookieName))
			Expect(cookies[0].Value).To(Equal("fresh-token"))
			Expect(backend.Body("POST /auth/login")).To(MatchJSON(`{"email":"lead@plant.example","password":"secret"}`))
		})

		It("should show an error for rejected credentials", func() {
			backend.reply("POST /auth/login", http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})

			rec := serve(postForm("/login", url.Values{"email": {"lead@plant.example"}, "password": {"wrong"}}))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Body.String()).To(ContainSubstring(console.MsgBadCredentials))
			Expect(rec.Body.String()).To(ContainSubstring(`value="lead@plant.example"`))
			Expect(rec.Result().Cookies()).To(BeEmpty())
		})

		It("should clear the session on logout", func() {
			rec := serve(signedIn(httptest.NewRequest(http.MethodPost, "/logout", nil)))
			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/login"))

			cookies := rec.Result().Cookies()
			Expect(cookies).To(HaveLen(1))
			Expect(cookies[0].MaxAge).To(BeNumerically("<", 0))
		})
	})

	Describe("guarded screens", func() {
		It("should redirect to login without any backend call when no token is held", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/login"))
			Expect(backend.Calls()).To(BeEmpty())
		})

		It("should use HX-Redirect for htmx requests", func() {
			req := httptest.NewRequest(http.MethodPost, "/admin/upload", nil)
			req.Header.Set("HX-Request", "true")
			rec := serve(req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("HX-Redirect")).To(Equal("/login"))
			Expect(backend.Calls()).To(BeEmpty())
		})

		DescribeTable("should clear the token when the identity check fails",
			func(status int) {
				backend.reply("GET /auth/me", status, map[string]string{"detail": "nope"})

				rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))
				Expect(rec.Code).To(Equal(http.StatusSeeOther))
				Expect(rec.Header().Get("Location")).To(Equal("/login"))

				cookies := rec.Result().Cookies()
				Expect(cookies).To(HaveLen(1))
				Expect(cookies[0].MaxAge).To(BeNumerically("<", 0))
				Expect(backend.Calls()).To(Equal([]string{"GET /auth/me"}))
			},
			Entry("unauthorized", http.StatusUnauthorized),
			Entry("forbidden", http.StatusForbidden),
			Entry("server error", http.StatusInternalServerError),
		)

		It("should send non-admins from the admin screen to the dashboard", func() {
			signInAs(api.RoleOperator)

			rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/admin", nil)))
			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/dashboard"))
			Expect(rec.Result().Cookies()).To(BeEmpty())
			Expect(backend.Calls()).To(Equal([]string{"GET /auth/me"}))
		})
	})

	Describe("dashboard", func() {
		BeforeEach(func() {
			signInAs(api.RoleOperator)
		})

		It("should fall back to placeholder data when the backend has none", func() {
			rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))
			Expect(rec.Code).To(Equal(http.StatusOK))

			body := rec.Body.String()
			Expect(body).To(ContainSubstring("Dashboard Overview"))
			Expect(body).To(ContainSubstring("7 / 8"))
			Expect(body).To(ContainSubstring("Elevated gas index"))
			Expect(body).To(ContainSubstring("Last 20 readings"))
			Expect(body).NotTo(ContainSubstring("Data Simulator"))
		})

		It("should count devices online by last seen", func() {
			backend.reply("GET /devices", http.StatusOK, []api.Device{
				{ID: 11, DeviceID: "ESP32-A", DeviceName: "Kiln Gauge", FactoryID: 1, IsActive: true, LastSeen: api.At(now.Add(-time.Minute))},
				{ID: 12, DeviceID: "ESP32-B", DeviceName: "Dryer Gauge", FactoryID: 1, IsActive: true, LastSeen: api.At(now.Add(-10 * time.Minute))},
			})

			rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("1 / 2"))
			Expect(backend.Count("GET /data/timeseries")).To(Equal(1))
		})

		It("should render device cards on the devices tab", func() {
			rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/dashboard?tab=devices", nil)))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("Device Management"))
			Expect(rec.Body.String()).To(ContainSubstring("Furnace Monitor 1"))
			Expect(backend.Count("GET /alerts")).To(Equal(0))
		})

		It("should download a report as indented JSON", func() {
			backend.reply("GET /reports/weekly", http.StatusOK, map[string]any{"period": "week", "total": 3})

			rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/dashboard/reports/weekly", nil)))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Disposition")).To(Equal(`attachment; filename="carbonseed-weekly-report.json"`))
			Expect(rec.Body.String()).To(Equal("{\n  \"period\": \"week\",\n  \"total\": 3\n}\n"))
		})

		It("should reject unknown report types", func() {
			rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/dashboard/reports/daily", nil)))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(backend.Count("GET /reports/daily")).To(Equal(0))
		})
	})

	Describe("admin", func() {
		BeforeEach(func() {
			signInAs(api.RoleAdmin)
		})

		It("should render the overview with placeholder stats", func() {
			rec := serve(signedIn(httptest.NewRequest(http.MethodGet, "/admin", nil)))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("Steel Forge Industries"))
			Expect(rec.Body.String()).To(ContainSubstring("Rajesh Kumar"))
		})

		Describe("role change", func() {
			BeforeEach(func() {
				backend.reply("GET /auth/users", http.StatusOK, []api.User{
					{ID: 3, Email: "ops@plant.example", FullName: "Night Operator", Role: api.RoleViewer, IsActive: true},
				})
			})

			It("should show the new role even when the backend fails", func() {
				backend.reply("PUT /auth/users/3/role", http.StatusInternalServerError, map[string]string{"detail": "boom"})

				rec := serve(signedIn(postForm("/admin/users/3/role", url.Values{"role": {"operator"}})))
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(ContainSubstring(`<option value="operator" selected>`))
				Expect(rec.Body.String()).NotTo(ContainSubstring(`<option value="viewer" selected>`))

				entries := recorder.Entries()
				Expect(entries).To(HaveLen(1))
				Expect(entries[0].Action).To(Equal(audit.ActionRoleChange))
				Expect(entries[0].Outcome).To(Equal("failed"))
				Expect(entries[0].Target).To(Equal("3"))
			})

			It("should send the role as a query parameter", func() {
				var query string
				backend.handle("PUT /auth/users/3/role", func(w http.ResponseWriter, r *http.Request) {
					query = r.URL.RawQuery
					w.WriteHeader(http.StatusOK)
				})

				rec := serve(signedIn(postForm("/admin/users/3/role", url.Values{"role": {"operator"}})))
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(query).To(Equal("role=operator"))
				Expect(recorder.Entries()[0].Outcome).To(Equal("success"))
			})

			It("should reject unknown roles before calling the backend", func() {
				rec := serve(signedIn(postForm("/admin/users/3/role", url.Values{"role": {"superuser"}})))
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(backend.Count("PUT /auth/users/3/role")).To(Equal(0))
				Expect(recorder.Entries()).To(BeEmpty())
			})
		})

		Describe("upload", func() {
			It("should post a well-formed payload to the kind's endpoint", func() {
				backend.reply("POST /devices/bulk", http.StatusOK, api.BulkResult{Status: "success", Created: 1})

				rec := serve(signedIn(postForm("/admin/upload", url.Values{"kind": {"devices"}, "json": {newDevicePayload}})))
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(ContainSubstring("Successfully uploaded devices data"))
				Expect(rec.Body.String()).To(ContainSubstring("1 records created"))
				Expect(backend.Body("POST /devices/bulk")).To(MatchJSON(newDevicePayload))

				entries := recorder.Entries()
				Expect(entries).To(HaveLen(1))
				Expect(entries[0].Action).To(Equal(audit.ActionUpload))
				Expect(entries[0].Actor).To(Equal("lead@plant.example"))
				Expect(entries[0].Outcome).To(Equal("success"))
				Expect(rec.Body.String()).To(ContainSubstring("Recent Uploads"))
			})

			It("should not post malformed JSON", func() {
				rec := serve(signedIn(postForm("/admin/upload", url.Values{
					"kind": {"devices"},
					"json": {`{"devices":[{"device_id":"ESP32-NEW-001",}]}`},
				})))
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(ContainSubstring("invalid JSON"))
				Expect(backend.Count("POST /devices/bulk")).To(Equal(0))
				Expect(recorder.Entries()[0].Outcome).To(Equal("validation"))
			})

			It("should show the backend's detail when the upload is rejected", func() {
				backend.reply("POST /alerts/bulk", http.StatusUnprocessableEntity, map[string]string{"detail": "factory 9 does not exist"})

				rec := serve(signedIn(postForm("/admin/upload", url.Values{"kind": {"alerts"}, "json": {`{"alerts":[]}`}})))
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(ContainSubstring("factory 9 does not exist"))
				Expect(rec.Body.String()).To(ContainSubstring(`{&#34;alerts&#34;:[]}`))
			})

			Describe("file selection", func() {
				multipartUpload := func(kind, content string) *http.Request {
					var buf bytes.Buffer
					mw := multipart.NewWriter(&buf)
					Expect(mw.WriteField("kind", kind)).To(Succeed())
					fw, err := mw.CreateFormFile("file", "upload.json")
					Expect(err).NotTo(HaveOccurred())
					_, err = fw.Write([]byte(content))
					Expect(err).NotTo(HaveOccurred())
					Expect(mw.Close()).To(Succeed())

					req := httptest.NewRequest(http.MethodPost, "/admin/upload/file", &buf)
					req.Header.Set("Content-Type", mw.FormDataContentType())
					return signedIn(req)
				}

				It("should load a well-formed file into the buffer", func() {
					rec := serve(multipartUpload("readings", `{"readings":[]}`))
					Expect(rec.Code).To(Equal(http.StatusOK))
					Expect(rec.Body.String()).To(ContainSubstring(`{&#34;readings&#34;:[]}`))
					Expect(rec.Body.String()).To(ContainSubstring(`value="readings" checked`))
					Expect(backend.Count("POST /data/bulk")).To(Equal(0))
				})

				It("should reject a malformed file", func() {
					rec := serve(multipartUpload("devices", `{"devices":[`))
					Expect(rec.Code).To(Equal(http.StatusOK))
					Expect(rec.Body.String()).To(ContainSubstring("Invalid JSON file"))
				})
			})
		})
	})
})
