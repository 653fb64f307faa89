package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/ticket-autobuy/internal/handler"
	"github.com/iliyamo/ticket-autobuy/internal/middleware"
	"github.com/iliyamo/ticket-autobuy/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterListings wires the listing API.  Reads are open and served
// through the response cache; buying and deleting need an operator token
// and purge the cache when they succeed.
func RegisterListings(e *echo.Echo, h *handler.ListingHandler, jwtSecret string, cache *middleware.ResponseCache) {
	g := e.Group("/v1/listings")
	g.GET("", h.List, cache.Middleware())
	g.GET("/:id", h.Get, cache.Middleware())

	ops := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator),
		cache.Invalidate(),
	}
	g.POST("/:id/buy", h.BuyNow, ops...)
	g.DELETE("/:id", h.Delete, ops...)
}
