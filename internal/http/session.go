package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"microblog/internal/domain"
)

const (
	sessionCookie = "session"
	flashCookie   = "flash"

	currentUserKey = "current_user"
	flashesKey     = "flashes"
)

func currentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(currentUserKey); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}

func setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", c.Request.TLS != nil, true)
}

// startSession signs the user in. Remembered sessions outlive the browser.
func (h *Handler) startSession(c *gin.Context, user *domain.User, remember bool) error {
	ttl := h.sessionTTL
	if remember {
		ttl = h.rememberTTL
	}
	token, _, err := h.tokens.IssueSession(user.ID, ttl)
	if err != nil {
		return err
	}

	maxAge := 0
	if remember {
		maxAge = int(ttl / time.Second)
	}
	setCookie(c, sessionCookie, token, maxAge)
	c.Set(currentUserKey, user)
	return nil
}

func endSession(c *gin.Context) {
	setCookie(c, sessionCookie, "", -1)
	c.Set(currentUserKey, (*domain.User)(nil))
}

// pendingFlashes returns the messages not yet shown, reading the cookie once per request.
func pendingFlashes(c *gin.Context) []string {
	if v, ok := c.Get(flashesKey); ok {
		return v.([]string)
	}
	var msgs []string
	if raw, err := c.Cookie(flashCookie); err == nil && raw != "" {
		msgs, _ = decodeFlashes(raw)
	}
	c.Set(flashesKey, msgs)
	return msgs
}

// flash queues msg for the next rendered page.
func flash(c *gin.Context, msg string) {
	msgs := append(pendingFlashes(c), msg)
	c.Set(flashesKey, msgs)
	setCookie(c, flashCookie, encodeFlashes(msgs), 0)
}

func popFlashes(c *gin.Context) []string {
	msgs := pendingFlashes(c)
	c.Set(flashesKey, []string(nil))
	if len(msgs) > 0 {
		setCookie(c, flashCookie, "", -1)
	}
	return msgs
}

func encodeFlashes(msgs []string) string {
	raw, _ := json.Marshal(msgs)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeFlashes(value string) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var msgs []string
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, errors.New("malformed flash cookie")
	}
	return msgs, nil
}
