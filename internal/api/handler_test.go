package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"phonecheck/internal/analytics"
	"phonecheck/internal/blacklist"
	blackliststore "phonecheck/internal/blacklist/store"
	historystore "phonecheck/internal/history/store"
	jwttoken "phonecheck/internal/jwt_token"
	"phonecheck/internal/otp"
	otpstore "phonecheck/internal/otp/store"
	"phonecheck/internal/phone"
	"phonecheck/internal/pipeline"
	platformmetrics "phonecheck/internal/platform/metrics"
	ratelimitmw "phonecheck/internal/ratelimit/middleware"
	"phonecheck/internal/ratelimit/models"
	ratelimitsvc "phonecheck/internal/ratelimit/service"
	"phonecheck/internal/ratelimit/store/bucket"
	"phonecheck/internal/safelist"
	safeliststore "phonecheck/internal/safelist/store"
	"phonecheck/pkg/platform/middleware/admin"
	"phonecheck/pkg/testutil"
)

const (
	testAdminToken = "admin-secret"
	testSigningKey = "0123456789abcdef0123456789abcdef"
)

type capturingSender struct {
	mu   sync.Mutex
	last string
}

func (c *capturingSender) Send(_ context.Context, _ phone.Number, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = body
	return nil
}

func (c *capturingSender) code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range strings.Fields(c.last) {
		f = strings.TrimRight(f, ".")
		if len(f) == 6 && strings.Trim(f, "0123456789") == "" {
			return f
		}
	}
	return ""
}

type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	token    string
	sender   *capturingSender
	recorder *analytics.Recorder
	handler  *Handler
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	safelistSvc := safelist.NewService(safeliststore.NewInMemoryStore(), safelist.WithLogger(logger))
	_, err := safelistSvc.Add(context.Background(), "+611300555123", "✅ SAFE – DHL Customer Service")
	s.Require().NoError(err)

	s.recorder = analytics.NewRecorder(100)
	analyzer := pipeline.New(safelistSvc, historystore.NewInMemoryStore(), nil, nil, nil,
		pipeline.WithLogger(logger),
		pipeline.WithSink(s.recorder),
	)

	s.sender = &capturingSender{}
	otpSvc := otp.NewService(otpstore.NewInMemoryStore(), s.sender,
		otp.WithLogger(logger),
		otp.WithHashCost(bcrypt.MinCost),
	)

	jwtSvc, err := jwttoken.NewJWTService(testSigningKey, "phonecheck", "phonecheck-api")
	s.Require().NoError(err)
	s.token, err = jwtSvc.GenerateToken("tester", time.Hour)
	s.Require().NoError(err)

	limiter := ratelimitsvc.New(bucket.NewInMemoryBucketStore(), models.Limits{
		PerIP:        20,
		IPWindow:     time.Hour,
		Global:       1000,
		GlobalWindow: time.Second,
	})

	s.handler = New(Services{
		Analyzer:  analyzer,
		Safelist:  safelistSvc,
		Blacklist: blacklist.NewService(blackliststore.NewInMemoryStore(), blacklist.WithLogger(logger)),
		OTP:       otpSvc,
		Stats:     s.recorder,
	}, logger, WithVersion("test"))

	reg := prometheus.NewRegistry()
	s.router = NewRouter(RouterConfig{
		Handler:    s.handler,
		Logger:     logger,
		RateLimit:  ratelimitmw.New(limiter, logger),
		Auth:       jwtSvc.Validator(),
		AdminToken: testAdminToken,
		Metrics:    platformmetrics.NewWithRegistry(reg),
		Gatherer:   reg,
	})
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path, body string, headers ...string) (*httptest.ResponseRecorder, testutil.Envelope) {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+s.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := testutil.DoRequest(s.router, req)
	return rec, testutil.DecodeEnvelope(s.T(), rec)
}

func (s *HandlerSuite) TestHealth() {
	s.Run("healthy without auth", func() {
		rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/health", nil))

		s.Equal(http.StatusOK, rec.Code)
		health := testutil.DecodeData[HealthResponse](s.T(), testutil.DecodeEnvelope(s.T(), rec))
		s.Equal("healthy", health.Status)
		s.Equal("test", health.Version)
	})

	s.Run("failing dependency degrades", func() {
		WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") })(s.handler)
		rec, env := s.do(http.MethodGet, "/api/health", "")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.False(env.Success)
		s.Contains(string(env.Data), `"redis":"unhealthy"`)
	})
}

func (s *HandlerSuite) TestLookup() {
	s.Run("unknown number is scored", func() {
		rec, env := s.do(http.MethodPost, "/api/phone/lookup", `{"phone_number":"+61 412 345 678"}`)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.True(env.Success)

		var view map[string]any
		s.Require().NoError(json.Unmarshal(env.Data, &view))
		s.Equal("+61412345678", view["number"])
		s.Equal("Unknown", view["risk_label"])
		s.EqualValues(50, view["risk_score"])
		s.NotEmpty(rec.Header().Get("X-Request-ID"))
	})

	s.Run("safelisted number", func() {
		rec, env := s.do(http.MethodPost, "/api/phone/lookup", `{"phone_number":"+611300555123"}`)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(string(env.Data), `"safelisted":true`)
	})

	s.Run("invalid format", func() {
		rec, _ := s.do(http.MethodPost, "/api/phone/lookup", `{"phone_number":"call me maybe"}`)
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "invalid_phone_format")
	})

	s.Run("missing number", func() {
		rec, _ := s.do(http.MethodPost, "/api/phone/lookup", `{}`)
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})

	s.Run("lookups feed stats", func() {
		rec, env := s.do(http.MethodGet, "/api/stats/summary?hours=1", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		summary := testutil.DecodeData[analytics.Summary](s.T(), env)
		s.Equal(1, summary.WindowHours)
		s.GreaterOrEqual(summary.TotalLookups, 2)
	})
}

func (s *HandlerSuite) TestAuth() {
	s.Run("missing token", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/phone/lookup", LookupRequest{PhoneNumber: "+61412345678"})
		rec := testutil.DoRequest(s.router, req)
		testutil.AssertError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("bad token", func() {
		rec, env := s.do(http.MethodGet, "/api/blacklist", "", "Authorization", "Bearer not-a-jwt")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("unauthorized", env.Error)
	})
}

func (s *HandlerSuite) TestSafelist() {
	s.Run("write requires admin token", func() {
		rec, env := s.do(http.MethodPost, "/api/safelist", `{"phone_number":"+61299998888","label":"Bank"}`)
		s.Equal(http.StatusForbidden, rec.Code)
		s.Equal("forbidden", env.Error)
	})

	s.Run("add then get", func() {
		rec, _ := s.do(http.MethodPost, "/api/safelist", `{"phone_number":"+61299998888","label":"Bank"}`,
			admin.HeaderAdminToken, testAdminToken)
		s.Require().Equal(http.StatusCreated, rec.Code)

		rec, env := s.do(http.MethodGet, "/api/safelist/%2B61299998888", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		got := testutil.DecodeData[SafelistResponse](s.T(), env)
		s.True(got.Safelisted)
		s.Equal("Bank", got.Label)
	})

	s.Run("unknown number is not safelisted", func() {
		rec, env := s.do(http.MethodGet, "/api/safelist/%2B61400000000", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(string(env.Data), `"safelisted":false`)
	})
}

func (s *HandlerSuite) TestBlacklist() {
	adminHdr := []string{admin.HeaderAdminToken, testAdminToken}

	rec, env := s.do(http.MethodPost, "/api/blacklist", `{"phone_number":"+61411111111","reason":""}`, adminHdr...)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_error", env.Error)

	rec, _ = s.do(http.MethodPost, "/api/blacklist", `{"phone_number":"+61411111111","reason":"robocall"}`, adminHdr...)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/blacklist/%2B61411111111", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	got := testutil.DecodeData[BlacklistResponse](s.T(), env)
	s.True(got.IsBlacklisted)
	s.Equal("robocall", got.Entry.Reason)
	s.Equal("tester", got.Entry.AddedBy)

	rec, env = s.do(http.MethodGet, "/api/blacklist", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(testutil.DecodeData[[]blacklist.Entry](s.T(), env), 1)

	rec, _ = s.do(http.MethodDelete, "/api/blacklist/%2B61411111111", "", adminHdr...)
	s.Equal(http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodDelete, "/api/blacklist/%2B61411111111", "", adminHdr...)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", env.Error)

	rec, env = s.do(http.MethodGet, "/api/blacklist/%2B61411111111", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(string(env.Data), `"is_blacklisted":false`)
}

func (s *HandlerSuite) TestOTP() {
	rec, env := s.do(http.MethodPost, "/api/otp/send", `{"phone_number":"+61412345678","message_template":"Code: {code}"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(string(env.Data), `"otp_sent":true`)
	s.Contains(string(env.Data), `"expires_in":300`)

	code := s.sender.code()
	s.Require().Len(code, 6)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	rec, env = s.do(http.MethodPost, "/api/otp/verify", `{"phone_number":"+61412345678","otp_code":"`+wrong+`"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Invalid OTP", env.Message)
	s.Contains(string(env.Data), `"verified":false`)

	rec, env = s.do(http.MethodPost, "/api/otp/verify", `{"phone_number":"+61412345678","otp_code":"`+code+`"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("OTP verified successfully", env.Message)
	s.Contains(string(env.Data), `"verified":true`)

	rec, env = s.do(http.MethodPost, "/api/otp/verify", `{"phone_number":"+61412345678","otp_code":"12"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_error", env.Error)
}

func (s *HandlerSuite) TestStats() {
	rec, env := s.do(http.MethodGet, "/api/stats/summary?hours=abc", "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_error", env.Error)

	rec, env = s.do(http.MethodGet, "/api/stats/performance", "")
	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Success)
}

func (s *HandlerSuite) TestRateLimit() {
	var last *httptest.ResponseRecorder
	for range 21 {
		last, _ = s.do(http.MethodGet, "/api/stats/performance", "")
	}
	s.Equal(http.StatusTooManyRequests, last.Code)
	s.NotEmpty(last.Header().Get("Retry-After"))

	rec, _ := s.do(http.MethodGet, "/api/health", "")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestMetricsAndNotFound() {
	s.do(http.MethodGet, "/api/stats/performance", "")

	rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "phonecheck_http_requests_total")

	rec, env := s.do(http.MethodGet, "/nope", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("Endpoint not found", env.Message)
}
