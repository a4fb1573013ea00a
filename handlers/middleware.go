package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mohsenfayyazi/billder/logger"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/session"
)

const (
	SessionCookie   = "billder_sid"
	RequestIDHeader = "X-Request-ID"

	ctxSessionID = "sessionID"
	ctxRequestID = "requestID"
	ctxLogger    = "logger"
	ctxSession   = "session"
)

// RequestLogger tags each request with an id and logs it on completion.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		l := logger.WithRequestID(requestID)
		c.Set(ctxRequestID, requestID)
		c.Set(ctxLogger, &l)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := l.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = l.Error()
		case status >= http.StatusBadRequest:
			event = l.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// TraceRequests wraps each request in a root span.
func TraceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := Tracer.StartSpan(c.Request.Context(), c.Request.URL.Path)
		defer span.End()

		span.SetAttributes(map[string]interface{}{
			"http.method":     c.Request.Method,
			"http.url":        c.Request.URL.String(),
			"http.client_ip":  c.ClientIP(),
			"http.user_agent": c.Request.UserAgent(),
			"request_id":      c.GetString(ctxRequestID),
		})

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(map[string]interface{}{
			"http.status_code": c.Writer.Status(),
		})
	}
}

// Recovery renders the generic error page instead of dropping the
// connection when a handler panics.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestLogger(c).Error().
			Str("panic", fmt.Sprint(recovered)).
			Str("path", c.Request.URL.Path).
			Msg("handler panicked")
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}
		c.HTML(http.StatusInternalServerError, "error", gin.H{
			"Title":   "Something went wrong",
			"Message": "We're sorry, but something unexpected happened. Please try again or refresh the page.",
			"Retry":   c.Request.URL.RequestURI(),
		})
		c.Abort()
	})
}

// BrowserSession assigns every visitor a session id cookie. The id names the
// namespace the session keys live under.
func BrowserSession(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sid, 0, "/", "", secure, true)
		}
		c.Set(ctxSessionID, sid)
		c.Next()
	}
}

// AuthMiddleware admits only a live session whose user has role. Anonymous
// or expired visitors go to the login page; the other role goes to its own
// dashboard. A live token with an unreadable user is admitted as role, and
// the pages greet it with the role's fallback name.
func (d *Dashboard) AuthMiddleware(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := d.sessionFor(c).Authenticate(c.Request.Context())
		if errors.Is(err, session.ErrUnreadableUser) {
			l := requestLogger(c)
			l.Warn().Str("role", string(role)).Msg("stored user unreadable, using fallback")
			s.User.Role = role
			err = nil
		}
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrExpired) && !errors.Is(err, session.ErrCorrupt) {
				requestLogger(c).Error().Err(err).Msg("failed to load session")
			}
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required. Please log in again."})
				return
			}
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}

		if s.User.Role != role {
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have access to this page"})
				return
			}
			home := session.RouteFor(s.User.Role)
			if home == "" {
				home = "/login"
			}
			c.Redirect(http.StatusSeeOther, home)
			c.Abort()
			return
		}

		c.Set(ctxSession, s)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

func currentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(ctxSession); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

func requestLogger(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxLogger); ok {
		if l, ok := v.(*zerolog.Logger); ok {
			return l
		}
	}
	return &log.Logger
}

func wantsJSON(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEJSON || strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON)
}
