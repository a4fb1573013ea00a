package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/views"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("pages").Funcs(views.Funcs()).ParseFS(templateFS, "templates/*.tmpl")
}

// NewRouter builds the dashboard engine with its middleware chain.
func NewRouter(d *Dashboard) (*gin.Engine, error) {
	tmpl, err := Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(
		RequestLogger(),
		Recovery(),
		TraceRequests(),
		BrowserSession(strings.HasPrefix(d.cfg.FrontendURL, "https://")),
	)

	r.GET("/", d.Home)
	r.GET("/login", d.LoginPage)
	r.POST("/login", d.Login)
	r.GET("/register", d.RegisterPage)
	r.POST("/register", d.Register)
	r.GET("/logout", d.Logout)
	r.POST("/logout", d.Logout)
	r.GET("/invoice/:slug", d.PublicInvoice)
	r.GET("/invoice/:slug/pdf", d.PublicInvoicePDF)

	admin := r.Group("/admin")
	admin.Use(d.AuthMiddleware(models.RoleBusinessOwner))
	{
		admin.GET("", d.AdminDashboard)
		admin.GET("/invoices", d.AdminInvoices)
		admin.POST("/invoices", d.CreateInvoice)
		admin.GET("/invoices/:id", d.AdminInvoice)
		admin.GET("/invoices/:id/pdf", d.InvoicePDF)
		admin.POST("/invoices/:id/refund", d.Refund)
	}

	customer := r.Group("/customer")
	customer.Use(d.AuthMiddleware(models.RoleCustomer))
	{
		customer.GET("", d.CustomerDashboard)
		customer.GET("/invoices", d.CustomerInvoices)
		customer.GET("/invoices/:id", d.CustomerInvoice)
		customer.GET("/invoices/:id/pdf", d.InvoicePDF)
		customer.GET("/invoices/:id/pay", d.PaymentPage)
		customer.POST("/invoices/:id/pay/intent", d.CreateIntent)
		customer.POST("/invoices/:id/pay/confirm", d.ConfirmPayment)
		customer.GET("/payments", d.CustomerPayments)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "error", gin.H{
			"Title":   "Page not found",
			"Message": "The page you are looking for does not exist.",
		})
	})
	return r, nil
}
