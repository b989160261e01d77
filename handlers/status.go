package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/db"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/syncstate"
)

type statusResponse struct {
	Stats   db.Stats                   `json:"stats"`
	Cursors map[string]syncstate.Entry `json:"cursors"`
}

// Status reports dataset counts and the last synchronized key of every source.
func (h *Handler) Status(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	cursors, err := h.cursor.Load()
	if err != nil {
		h.logger.Warn("cursor file unreadable", zap.String("path", h.cursor.Path), zap.Error(err))
	}

	return c.JSON(http.StatusOK, statusResponse{Stats: stats, Cursors: cursors})
}

type drawResponse struct {
	*models.Draw
	Wins []models.WinRecord `json:"wins"`
}

// Draw returns one stored draw with its winning retailers. "latest" selects
// the newest draw.
func (h *Handler) Draw(c echo.Context) error {
	ctx := c.Request().Context()

	var d *models.Draw
	var err error
	if param := c.Param("no"); param == "latest" {
		d, err = h.store.GetLastDraw(ctx)
	} else {
		no, convErr := strconv.Atoi(param)
		if convErr != nil || no <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "draw number must be a positive integer")
		}
		d, err = h.store.GetDraw(ctx, no)
	}
	if err != nil {
		return lookupError(err)
	}

	wins, err := h.store.GetWinRecordsFor(ctx, d.DrawNo)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if wins == nil {
		wins = []models.WinRecord{}
	}
	return c.JSON(http.StatusOK, drawResponse{Draw: d, Wins: wins})
}

// Retailer returns one directory entry with its win counters.
func (h *Handler) Retailer(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "retailer id must be a positive integer")
	}
	r, err := h.store.GetRetailer(c.Request().Context(), id)
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func lookupError(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
