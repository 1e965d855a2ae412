package http

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if user := currentUser(c); user != nil {
			entry = entry.WithField("user_id", user.ID)
		}
		entry.Info("request")
	}
}

// loadUser resolves the session cookie to the current user and records the visit.
func (h *Handler) loadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			c.Next()
			return
		}

		userID, err := h.tokens.ParseSession(token)
		if err != nil {
			endSession(c)
			c.Next()
			return
		}

		ctx := c.Request.Context()
		user, err := h.users.GetByID(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				endSession(c)
			} else {
				h.logger.WithField("user_id", userID).Warnf("load session user: %v", err)
			}
			c.Next()
			return
		}

		if err := h.users.Touch(ctx, user.ID); err != nil {
			h.logger.WithField("user_id", user.ID).Warnf("update last seen: %v", err)
		} else {
			user.LastSeen = time.Now().UTC()
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// requireLogin sends anonymous visitors to the login page, remembering where they were going.
func (h *Handler) requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) != nil {
			c.Next()
			return
		}
		flash(c, "Please log in to access this page.")
		redirect(c, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

func (h *Handler) anonymousOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) != nil {
			redirect(c, "/index")
			c.Abort()
			return
		}
		c.Next()
	}
}

// safeNext accepts only same-origin relative paths as post-login redirect targets.
func safeNext(next string) (string, bool) {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "", false
	}
	if strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n\t") {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	return next, true
}
