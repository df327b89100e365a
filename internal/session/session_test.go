package session_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/internal/session"
)

func signed(exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops@plant.example",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Manager", func() {
	var (
		now     time.Time
		manager *session.Manager
	)

	BeforeEach(func() {
		now = time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)
		var err error
		manager, err = session.NewManager(&session.Config{
			Now:    func() time.Time { return now },
			MaxAge: 24 * time.Hour,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewManager", func() {
		It("should return error when config is nil", func() {
			_, err := session.NewManager(nil)
			Expect(err).To(MatchError("session config cannot be nil"))
		})

		It("should default the cookie name", func() {
			Expect(manager.CookieName()).To(Equal(session.DefaultCookieName))
		})
	})

	It("stores and reads the token", func() {
		rec := httptest.NewRecorder()
		manager.Begin(rec, "abc123")

		cookies := rec.Result().Cookies()
		Expect(cookies).To(HaveLen(1))
		Expect(cookies[0].Name).To(Equal("carbonseed_token"))
		Expect(cookies[0].HttpOnly).To(BeTrue())
		Expect(cookies[0].MaxAge).To(Equal(86400))

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(cookies[0])
		token, ok := manager.Token(req)
		Expect(ok).To(BeTrue())
		Expect(token).To(Equal("abc123"))
	})

	It("reports a missing token", func() {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		_, ok := manager.Token(req)
		Expect(ok).To(BeFalse())
	})

	It("expires the cookie on End", func() {
		rec := httptest.NewRecorder()
		manager.End(rec)

		cookies := rec.Result().Cookies()
		Expect(cookies).To(HaveLen(1))
		Expect(cookies[0].Value).To(BeEmpty())
		Expect(cookies[0].MaxAge).To(BeNumerically("<", 0))
	})

	DescribeTable("Expired",
		func(token func() string, want bool) {
			Expect(manager.Expired(token())).To(Equal(want))
		},
		Entry("future exp", func() string { return signed(now.Add(time.Hour)) }, false),
		Entry("past exp", func() string { return signed(now.Add(-time.Second)) }, true),
		Entry("opaque token", func() string { return "not-a-jwt" }, false),
		Entry("jwt without exp", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("k"))
			return s
		}, false),
	)
})
