package session_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"carbonseed.io/console/internal/session"
	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
)

// Metric sets register once per process.
var guardMetrics = metrics.NewConsoleMetrics(metrics.Namespace)

type fakeFetcher struct {
	user  *api.User
	err   error
	calls int
}

func (f *fakeFetcher) Me(_ context.Context, _ string) (*api.User, error) {
	f.calls++
	return f.user, f.err
}

var _ = Describe("Guard", func() {
	var (
		logger  *slog.Logger
		manager *session.Manager
		fetcher *fakeFetcher
		guard   *session.Guard
		reached bool
		seen    session.Identity
		next    http.Handler
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		var err error
		manager, err = session.NewManager(&session.Config{})
		Expect(err).NotTo(HaveOccurred())

		fetcher = &fakeFetcher{user: &api.User{ID: 3, Email: "ops@plant.example", Role: api.RoleOperator}}
		guard, err = session.NewGuard(&session.GuardConfig{
			Logger:  logger,
			Manager: manager,
			Fetcher: fetcher,
			Metrics: guardMetrics,
		})
		Expect(err).NotTo(HaveOccurred())

		reached = false
		seen = session.Identity{}
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			seen, _ = session.IdentityFrom(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	request := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: token})
		}
		return req
	}

	clearsCookie := func(rec *httptest.ResponseRecorder) bool {
		for _, c := range rec.Result().Cookies() {
			if c.Name == session.DefaultCookieName && c.MaxAge < 0 {
				return true
			}
		}
		return false
	}

	Describe("NewGuard", func() {
		It("should return error when config is nil", func() {
			_, err := session.NewGuard(nil)
			Expect(err).To(MatchError("guard config cannot be nil"))
		})

		It("should return error when fetcher is nil", func() {
			_, err := session.NewGuard(&session.GuardConfig{Logger: logger, Manager: manager})
			Expect(err).To(MatchError("identity fetcher cannot be nil"))
		})
	})

	Context("without a token", func() {
		It("redirects to login without calling the backend", func() {
			rec := httptest.NewRecorder()
			guard.Require("", next).ServeHTTP(rec, request(""))

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/login"))
			Expect(fetcher.calls).To(BeZero())
			Expect(reached).To(BeFalse())
		})

		It("uses HX-Redirect for htmx requests", func() {
			req := request("")
			req.Header.Set("HX-Request", "true")
			rec := httptest.NewRecorder()
			guard.Require("", next).ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("HX-Redirect")).To(Equal("/login"))
			Expect(rec.Header().Get("Location")).To(BeEmpty())
		})
	})

	Context("with an expired JWT", func() {
		It("clears the token without calling the backend", func() {
			rec := httptest.NewRecorder()
			guard.Require("", next).ServeHTTP(rec, request(signed(time.Now().Add(-time.Minute))))

			Expect(rec.Header().Get("Location")).To(Equal("/login"))
			Expect(clearsCookie(rec)).To(BeTrue())
			Expect(fetcher.calls).To(BeZero())
		})
	})

	Context("when the identity fetch fails", func() {
		DescribeTable("clears the token and redirects to login",
			func(err error, reason string) {
				redirects := guardMetrics.GuardRedirects.WithLabelValues(reason)
				before := testutil.ToFloat64(redirects)

				fetcher.user, fetcher.err = nil, err
				rec := httptest.NewRecorder()
				guard.Require("", next).ServeHTTP(rec, request("opaque-token"))

				Expect(rec.Header().Get("Location")).To(Equal("/login"))
				Expect(clearsCookie(rec)).To(BeTrue())
				Expect(fetcher.calls).To(Equal(1))
				Expect(reached).To(BeFalse())
				Expect(testutil.ToFloat64(redirects)).To(Equal(before + 1))
			},
			Entry("unauthorized", &api.StatusError{Endpoint: "me", StatusCode: 401}, session.ReasonUnauthorized),
			Entry("forbidden", &api.StatusError{Endpoint: "me", StatusCode: 403}, session.ReasonIdentity),
			Entry("server error", &api.StatusError{Endpoint: "me", StatusCode: 500}, session.ReasonIdentity),
			Entry("transport", &api.TransportError{Endpoint: "me", Err: errors.New("dial tcp: refused")}, session.ReasonIdentity),
		)
	})

	Context("with a valid session", func() {
		It("passes the identity to the handler", func() {
			rec := httptest.NewRecorder()
			guard.Require("", next).ServeHTTP(rec, request("opaque-token"))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(reached).To(BeTrue())
			Expect(seen.Token).To(Equal("opaque-token"))
			Expect(seen.User.Email).To(Equal("ops@plant.example"))
		})

		It("fetches the identity on every request", func() {
			h := guard.Require("", next)
			h.ServeHTTP(httptest.NewRecorder(), request("opaque-token"))
			h.ServeHTTP(httptest.NewRecorder(), request("opaque-token"))
			Expect(fetcher.calls).To(Equal(2))
		})

		It("sends users without the required role to the dashboard", func() {
			rec := httptest.NewRecorder()
			guard.Require(api.RoleAdmin, next).ServeHTTP(rec, request("opaque-token"))

			Expect(rec.Header().Get("Location")).To(Equal("/dashboard"))
			Expect(clearsCookie(rec)).To(BeFalse())
			Expect(reached).To(BeFalse())
		})

		It("admits users holding the required role", func() {
			fetcher.user.Role = api.RoleAdmin
			rec := httptest.NewRecorder()
			guard.Require(api.RoleAdmin, next).ServeHTTP(rec, request("opaque-token"))
			Expect(reached).To(BeTrue())
		})
	})
})
