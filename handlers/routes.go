package handlers

import (
	"github.com/labstack/echo/v4"

	mw "github.com/padraicbc/lottosync/middleware"
)

// Routes registers the public signin route and the JWT-protected read routes.
func (h *Handler) Routes(e *echo.Echo) {
	e.POST("/signin", h.Signin)

	g := e.Group("/api", mw.JWT(h.JWTKey))
	g.GET("/status", h.Status)
	g.GET("/draws/:no", h.Draw)
	g.GET("/retailers/:id", h.Retailer)
}
