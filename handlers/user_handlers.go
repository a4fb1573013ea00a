package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/session"
	"github.com/mohsenfayyazi/billder/validation"
)

// Home sends a returning visitor to their dashboard and everyone else to the
// landing page.
func (d *Dashboard) Home(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "Home")
	defer span.End()

	route, err := d.sessionFor(c).HomeRoute(ctx)
	if err != nil {
		span.SetError(err.Error(), "")
		requestLogger(c).Error().Err(err).Msg("failed to read session")
	}
	if route != "" {
		c.Redirect(http.StatusSeeOther, route)
		return
	}
	d.page(c, http.StatusOK, "home", nil)
}

func (d *Dashboard) LoginPage(c *gin.Context) {
	if route, _ := d.sessionFor(c).HomeRoute(c.Request.Context()); route != "" {
		c.Redirect(http.StatusSeeOther, route)
		return
	}
	d.page(c, http.StatusOK, "login", nil)
}

type LoginRequest struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

func (d *Dashboard) Login(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "Login")
	defer span.End()

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		d.pageError(c, span, "login", nil, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	data := gin.H{"Email": req.Email}
	if err := validation.Email(req.Email); err != nil {
		d.pageError(c, span, "login", data, err)
		return
	}
	if err := validation.Password(req.Password); err != nil {
		d.pageError(c, span, "login", data, err)
		return
	}
	span.SetAttributes(map[string]interface{}{"email": req.Email})

	user, err := d.actionClient(c).Login(ctx, req.Email, req.Password)
	if err != nil {
		// a rejected login is an auth error but must stay on this page
		span.SetError(err.Error(), "")
		data["Error"] = apierror.Message(err)
		d.page(c, statusFor(err), "login", data)
		return
	}

	route := session.RouteFor(user.Role)
	if route == "" {
		data["Error"] = "Unknown account role. Please contact support."
		d.page(c, http.StatusForbidden, "login", data)
		return
	}
	requestLogger(c).Info().Int("user_id", user.ID).Str("role", string(user.Role)).Msg("user logged in")
	c.Redirect(http.StatusSeeOther, route)
}

func (d *Dashboard) RegisterPage(c *gin.Context) {
	d.page(c, http.StatusOK, "register", gin.H{"Role": string(models.RoleCustomer)})
}

type RegisterRequest struct {
	FirstName       string `form:"first_name"`
	LastName        string `form:"last_name"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	PasswordConfirm string `form:"password_confirm"`
	Role            string `form:"role"`
}

func (d *Dashboard) Register(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "Register")
	defer span.End()

	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		d.pageError(c, span, "register", nil, err)
		return
	}
	data := gin.H{
		"FirstName": req.FirstName,
		"LastName":  req.LastName,
		"Email":     req.Email,
		"Role":      req.Role,
	}

	role := models.Role(req.Role)
	if role != models.RoleBusinessOwner && role != models.RoleCustomer {
		data["Error"] = "Please choose an account type"
		d.page(c, http.StatusBadRequest, "register", data)
		return
	}
	for _, check := range []error{
		validation.Name("first_name", req.FirstName),
		validation.Name("last_name", req.LastName),
		validation.Email(strings.TrimSpace(req.Email)),
		validation.PasswordStrength(req.Password),
	} {
		if check != nil {
			d.pageError(c, span, "register", data, check)
			return
		}
	}
	if req.Password != req.PasswordConfirm {
		data["Error"] = "Passwords do not match"
		d.page(c, http.StatusBadRequest, "register", data)
		return
	}

	user, err := d.actionClient(c).Register(ctx, apiclient.Registration{
		Email:           strings.TrimSpace(req.Email),
		FirstName:       validation.Sanitize(req.FirstName),
		LastName:        validation.Sanitize(req.LastName),
		Role:            role,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		span.SetError(err.Error(), "")
		data["Error"] = apierror.Message(err)
		d.page(c, statusFor(err), "register", data)
		return
	}
	c.Redirect(http.StatusSeeOther, session.RouteFor(user.Role))
}

// Logout always ends the local session, even when the backend is down.
func (d *Dashboard) Logout(c *gin.Context) {
	ctx, span := Tracer.StartSpan(c.Request.Context(), "Logout")
	defer span.End()

	if err := d.client(c).Logout(ctx); err != nil {
		span.SetError(err.Error(), "")
		requestLogger(c).Error().Err(err).Msg("failed to clear session")
	}
	c.Redirect(http.StatusSeeOther, "/login")
}
