package identity

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/medqueue/medqueue/internal/platform/auth"
)

type Handler struct {
	svc     *Service
	baseURL string
}

func NewHandler(svc *Service, baseURL string) *Handler {
	return &Handler{svc: svc, baseURL: baseURL}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Registration is open; the surrounding product gates it with its own
	// signup flow.
	api.POST("/patients", h.RegisterPatient)
	api.POST("/doctors", h.RegisterDoctor)
	api.POST("/pharmacies", h.RegisterPharmacy)

	staff := api.Group("", auth.RequireRole("doctor", "pharmacist", "patient"))
	staff.GET("/patients/:nic", h.GetPatient)
	staff.GET("/doctors/:slmc", h.GetDoctor)
	staff.GET("/pharmacies/:license", h.GetPharmacy)

	api.PUT("/patients/:nic", h.UpdatePatient, auth.RequireRole("patient"))

	// Check-in QR payloads: opaque URLs carrying the target key. Image
	// rendering is the frontend's job.
	api.GET("/doctors/:slmc/qr", h.DoctorQR, auth.RequireRole("doctor"))
	api.GET("/pharmacies/:license/qr", h.PharmacyQR, auth.RequireRole("pharmacist"))
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterPatient(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterDoctor(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) RegisterPharmacy(c echo.Context) error {
	var ph Pharmacy
	if err := c.Bind(&ph); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterPharmacy(c.Request().Context(), &ph); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ph)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("nic"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.GetDoctor(c.Request().Context(), c.Param("slmc"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetPharmacy(c echo.Context) error {
	ph, err := h.svc.GetPharmacy(c.Request().Context(), c.Param("license"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "pharmacy not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ph)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.NIC = c.Param("nic")
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DoctorQR(c echo.Context) error {
	slmc := c.Param("slmc")
	if _, err := h.svc.GetDoctor(c.Request().Context(), slmc); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"url": fmt.Sprintf("%s/access/grant?doctor=%s", h.baseURL, url.QueryEscape(slmc)),
	})
}

func (h *Handler) PharmacyQR(c echo.Context) error {
	license := c.Param("license")
	if _, err := h.svc.GetPharmacy(c.Request().Context(), license); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "pharmacy not found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"url": fmt.Sprintf("%s/pharmacy/check-in?pharmacy=%s", h.baseURL, url.QueryEscape(license)),
	})
}
