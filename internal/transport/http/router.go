package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mshuvalov/storefront/internal/handlers"
	"github.com/mshuvalov/storefront/internal/middleware"
)

type Deps struct {
	Session *middleware.Session

	AuthHandler         *handlers.AuthHandler
	CartHandler         *handlers.CartHandler
	ProductHandler      *handlers.ProductHandler
	NotificationHandler *handlers.NotificationHandler

	AuthLimiter *middleware.RateLimiter

	Metrics http.Handler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	e.Use(d.Session.Load)

	// Page routes carry the redirect gating; the bodies are bootstrap
	// payloads for the client shell.
	pages := e.Group("")
	pages.GET("/", pageCarts, middleware.RequireAuth)
	pages.GET("/login", page("login"), middleware.RequireAnon)
	pages.GET("/register", page("register"), middleware.RequireAnon)
	pages.GET("/logout", d.AuthHandler.LogoutPage)

	api := e.Group("/api")

	auth := api.Group("/auth")
	if d.AuthLimiter != nil {
		auth.Use(d.AuthLimiter.Middleware())
	}
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/logout", d.AuthHandler.Logout)

	api.GET("/notifications", d.NotificationHandler.Pop)

	products := api.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.ProductHandler.SearchProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	carts := api.Group("/carts", middleware.RequireAuth)
	carts.GET("", d.CartHandler.ListCarts)
	carts.GET("/:id", d.CartHandler.GetCart)
	carts.POST("", d.CartHandler.SubmitDraft)
	carts.POST("/draft", d.CartHandler.OpenDraft)
	carts.PUT("/draft/items", d.CartHandler.SetDraftQuantity)
	carts.DELETE("/draft", d.CartHandler.CancelDraft)
}

func pageCarts(c echo.Context) error {
	rec := middleware.FromContext(c)
	userID, _ := rec.CurrentUserID()
	return c.JSON(http.StatusOK, echo.Map{"page": "carts", "userId": userID})
}

func page(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"page": name})
	}
}
