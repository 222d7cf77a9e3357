package emergency

import (
	"net/http"

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
	api.POST("/emergency/access", h.WalkInAccess, auth.RequireRole("doctor"))
	api.GET("/emergency/grants", h.ListGrants, auth.RequireRole("patient"))
}

type walkInBody struct {
	DoctorSLMC string `json:"doctor_slmc"`
	PatientNIC string `json:"patient_nic"`
}

func (h *Handler) WalkInAccess(c echo.Context) error {
	var body walkInBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	grant, err := h.svc.WalkInAccess(c.Request().Context(), body.DoctorSLMC, body.PatientNIC)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, grant)
}

func (h *Handler) ListGrants(c echo.Context) error {
	nic := c.QueryParam("patient_nic")
	if nic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_nic is required")
	}
	params := pagination.FromContext(c)
	grants, total, err := h.svc.GrantsForPatient(c.Request().Context(), nic, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if grants == nil {
		grants = []*AccessGrant{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(grants, total, params.Limit, params.Offset))
}
