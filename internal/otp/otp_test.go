package otp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"phonecheck/internal/otp"
	"phonecheck/internal/otp/store"
	"phonecheck/internal/phone"
	dErrors "phonecheck/pkg/domain-errors"
	"phonecheck/pkg/requestcontext"
)

var sentAt = time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)

type captureSender struct {
	mu   sync.Mutex
	body string
	to   phone.Number
	err  error
}

func (c *captureSender) Send(_ context.Context, to phone.Number, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.to, c.body = to, body
	return c.err
}

// code extracts the six digits from the default message.
func (c *captureSender) code(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i+6 <= len(c.body); i++ {
		candidate := c.body[i : i+6]
		allDigits := true
		for _, r := range candidate {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return candidate
		}
	}
	t.Fatalf("no code in %q", c.body)
	return ""
}

func newService(sender otp.Sender) *otp.Service {
	return otp.NewService(store.NewInMemoryStore(), sender, otp.WithHashCost(bcrypt.MinCost))
}

func TestService_SendAndVerify(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), sentAt)
	sender := &captureSender{}
	svc := newService(sender)

	res, err := svc.Send(ctx, "+61412345678", "")
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, 300, res.ExpiresIn)
	assert.Equal(t, "+61412345678", sender.to.String())

	code := sender.code(t)
	verified, err := svc.Verify(ctx, "+61 412 345 678", code)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	t.Run("code is consumed", func(t *testing.T) {
		again, err := svc.Verify(ctx, "+61412345678", code)
		require.NoError(t, err)
		assert.False(t, again.Verified)
	})
}

func TestService_Template(t *testing.T) {
	sender := &captureSender{}
	_, err := newService(sender).Send(context.Background(), "+61412345678", "Code: {code}")
	require.NoError(t, err)
	assert.Regexp(t, `^Code: \d{6}$`, sender.body)
}

func TestService_Expiry(t *testing.T) {
	sender := &captureSender{}
	svc := newService(sender)
	_, err := svc.Send(requestcontext.WithTime(context.Background(), sentAt), "+61412345678", "")
	require.NoError(t, err)

	later := requestcontext.WithTime(context.Background(), sentAt.Add(301*time.Second))
	res, err := svc.Verify(later, "+61412345678", sender.code(t))
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestService_AttemptBudget(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), sentAt)
	sender := &captureSender{}
	svc := newService(sender)
	_, err := svc.Send(ctx, "+61412345678", "")
	require.NoError(t, err)

	wrong := "000000"
	if sender.code(t) == wrong {
		wrong = "111111"
	}
	for remaining := 4; remaining >= 1; remaining-- {
		res, err := svc.Verify(ctx, "+61412345678", wrong)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Equal(t, remaining, res.AttemptsRemaining)
	}

	_, err = svc.Verify(ctx, "+61412345678", wrong)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))

	res, err := svc.Verify(ctx, "+61412345678", sender.code(t))
	require.NoError(t, err)
	assert.False(t, res.Verified, "exhausted challenge is gone")
}

func TestService_Validation(t *testing.T) {
	svc := newService(&captureSender{})

	_, err := svc.Send(context.Background(), "notanumber", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidFormat))

	_, err = svc.Verify(context.Background(), "+61412345678", "12")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestService_SenderFailure(t *testing.T) {
	sender := &captureSender{err: errors.New("carrier rejected")}
	svc := newService(sender)

	_, err := svc.Send(context.Background(), "+61412345678", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	res, err := svc.Verify(context.Background(), "+61412345678", "123456")
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestTwilioSender(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := otp.NewTwilioSender(otp.TwilioConfig{AccountSID: "AC123", AuthToken: "secret", From: "+15005550006", BaseURL: srv.URL})
	require.NoError(t, sender.Send(context.Background(), phone.MustParse("+61412345678"), "hello"))
	assert.Equal(t, map[string]string{"To": "+61412345678", "From": "+15005550006", "Body": "hello"}, gotForm)

	t.Run("error status", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad number", http.StatusBadRequest)
		}))
		defer failing.Close()
		s := otp.NewTwilioSender(otp.TwilioConfig{AccountSID: "AC123", AuthToken: "secret", From: "+1", BaseURL: failing.URL})
		assert.Error(t, s.Send(context.Background(), phone.MustParse("+61412345678"), "hello"))
	})

	t.Run("not configured", func(t *testing.T) {
		assert.Error(t, otp.NewTwilioSender(otp.TwilioConfig{}).Send(context.Background(), phone.MustParse("+61412345678"), "x"))
	})
}
