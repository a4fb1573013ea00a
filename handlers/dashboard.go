package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/cache"
	"github.com/mohsenfayyazi/billder/config"
	"github.com/mohsenfayyazi/billder/payment"
	"github.com/mohsenfayyazi/billder/pdf"
	"github.com/mohsenfayyazi/billder/ratelimit"
	"github.com/mohsenfayyazi/billder/session"
	"github.com/mohsenfayyazi/billder/telemetry"
)

const (
	flowTTL    = 30 * time.Minute
	limiterTTL = time.Hour
)

// Dashboard holds what the page and JSON handlers share across requests.
type Dashboard struct {
	cfg      *config.Config
	store    session.Store
	hub      *session.Hub
	flows    *payment.Registry
	limiters *cache.TTLCache[string, *ratelimit.Pair]
	pdf      *pdf.Generator
	http     *http.Client
	now      func() time.Time
}

type Option func(*Dashboard)

func WithHTTPClient(hc *http.Client) Option {
	return func(d *Dashboard) { d.http = hc }
}

func WithPDF(g *pdf.Generator) Option {
	return func(d *Dashboard) { d.pdf = g }
}

// WithClock sets the clock used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// NewDashboard wires the handlers to the session store. Flows of a browser
// session are dropped as soon as that session is cleared.
func NewDashboard(cfg *config.Config, store session.Store, hub *session.Hub, opts ...Option) *Dashboard {
	d := &Dashboard{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		flows:    payment.NewRegistry(flowTTL),
		limiters: cache.NewTTLCache[string, *ratelimit.Pair](),
		pdf:      pdf.New(),
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	hub.Subscribe(func(e session.Event) {
		if e.Kind == session.EventCleared {
			d.flows.DropSession(e.Namespace)
		}
	})
	return d
}

func (d *Dashboard) sessionFor(c *gin.Context) *session.Manager {
	return session.NewManager(d.store, d.hub, sessionID(c), session.WithClock(d.now))
}

func (d *Dashboard) limitsFor(c *gin.Context) *ratelimit.Pair {
	return d.limiters.GetOrSet(sessionID(c), limiterTTL, func() *ratelimit.Pair {
		return ratelimit.NewPair(d.cfg.RateLimits())
	})
}

// client is for page loads, which are not rate limited.
func (d *Dashboard) client(c *gin.Context) *apiclient.Client {
	return apiclient.New(d.cfg.APIURL, d.sessionFor(c), d.clientOptions(c)...)
}

// actionClient gates every call on the browser session's API limiter.
func (d *Dashboard) actionClient(c *gin.Context) *apiclient.Client {
	opts := append(d.clientOptions(c), apiclient.WithLimiter(d.limitsFor(c).API))
	return apiclient.New(d.cfg.APIURL, d.sessionFor(c), opts...)
}

func (d *Dashboard) clientOptions(c *gin.Context) []apiclient.Option {
	return []apiclient.Option{
		apiclient.WithHTTPClient(d.http),
		apiclient.WithSessionTTL(d.cfg.SessionTTL),
		apiclient.WithLogger(*requestLogger(c)),
	}
}

// page renders name with the fields every layout reads.
func (d *Dashboard) page(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if s := currentSession(c); s != nil {
		data["User"] = s.User
	}
	data["Path"] = c.Request.URL.Path
	c.HTML(status, name, data)
}

// pageError shows err on the page, or sends the visitor to login when the
// backend no longer accepts the session.
func (d *Dashboard) pageError(c *gin.Context, span telemetry.Span, name string, data gin.H, err error) {
	span.SetError(err.Error(), "")
	if apierror.Is(err, apierror.KindAuth) {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	if data == nil {
		data = gin.H{}
	}
	data["Error"] = apierror.Message(err)
	d.page(c, statusFor(err), name, data)
}

func jsonError(c *gin.Context, span telemetry.Span, err error) {
	span.SetError(err.Error(), "")
	e := apierror.Normalize(err)
	if e.Kind == apierror.KindRateLimited && e.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int((e.RetryAfter+time.Second-1)/time.Second)))
	}
	c.JSON(statusFor(e), gin.H{"error": e.Message, "kind": e.Kind, "code": e.Code})
}

func statusFor(err error) int {
	e := apierror.Normalize(err)
	switch e.Kind {
	case apierror.KindValidation:
		return http.StatusBadRequest
	case apierror.KindAuth:
		return http.StatusUnauthorized
	case apierror.KindRateLimited:
		return http.StatusTooManyRequests
	case apierror.KindProcessor:
		return http.StatusPaymentRequired
	case apierror.KindNetwork:
		return http.StatusBadGateway
	case apierror.KindServer:
		if e.Status >= http.StatusBadRequest && e.Status < 600 {
			return e.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
