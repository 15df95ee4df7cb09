package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewRouter собирает echo-приложение с маршрутами API. Health-эндпоинты
// живут на отдельном сервере метрик и здесь не регистрируются.
func NewRouter(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	RegisterRoutes(e, h)
	return e
}

// RegisterRoutes вешает маршруты API на готовый echo-инстанс.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	api := e.Group("/api/v1")

	api.GET("/capacity", h.GetCapacity)
	api.GET("/quote", h.GetQuote)
	api.GET("/locations/:id/tables", h.ListTables)
	api.POST("/reservations", h.CreateReservation)
	api.POST("/reconcile", h.Reconcile)

	api.GET("/archive", h.ListArchive)
	api.POST("/archive/restore", h.RestoreArchive)
	api.DELETE("/reservations/:id", h.DeleteReservation)
}
