package prescription

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medqueue/medqueue/internal/platform/auth"
	"github.com/medqueue/medqueue/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/prescriptions", h.Issue, auth.RequireRole("doctor"))
	api.GET("/prescriptions", h.List, auth.RequireRole("doctor", "pharmacist", "patient"))
	api.GET("/prescriptions/:id", h.Get, auth.RequireRole("doctor", "pharmacist", "patient"))
}

func (h *Handler) Issue(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Issue(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	nic := c.QueryParam("patient_nic")
	if nic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_nic is required")
	}
	ctx := c.Request().Context()

	if c.QueryParam("active") == "true" {
		items, err := h.svc.ListActiveByPatient(ctx, nic)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if items == nil {
			items = []*Prescription{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
	}

	params := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(ctx, nic, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}
