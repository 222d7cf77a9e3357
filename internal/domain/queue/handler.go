package queue

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medqueue/medqueue/internal/platform/auth"
	"github.com/medqueue/medqueue/pkg/pagination"
)

type Handler struct {
	svc *Service
	// pollInterval is echoed to polling clients as retry_after_seconds.
	pollInterval time.Duration
}

func NewHandler(svc *Service, pollInterval time.Duration) *Handler {
	return &Handler{svc: svc, pollInterval: pollInterval}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	q := api.Group("/queue")

	q.POST("/access-requests", h.CreateAccessRequest, auth.RequireRole("patient"))
	q.POST("/orders", h.CreateOrder, auth.RequireRole("patient"))
	q.POST("/orders/batch", h.CreateOrderBatch, auth.RequireRole("patient"))

	q.POST("/items/:id/admit", h.AdmitItem, auth.RequireRole("doctor"))
	q.POST("/items/:id/complete", h.CompleteItem, auth.RequireRole("doctor", "pharmacist"))
	q.POST("/items/:id/cancel", h.CancelItem, auth.RequireRole("pharmacist"))

	q.GET("/items/:id", h.GetItem, auth.RequireRole("doctor", "pharmacist", "patient"))
	q.GET("/orders/:id/detail", h.OrderDetail, auth.RequireRole("pharmacist"))
	q.GET("/pending", h.Pending, auth.RequireRole("doctor", "pharmacist"))
	q.GET("/status", h.Status, auth.RequireRole("patient"))
	q.GET("/history", h.History, auth.RequireRole("doctor", "pharmacist"))
}

type accessRequestBody struct {
	RequesterNIC string `json:"requester_nic"`
	DoctorSLMC   string `json:"doctor_slmc"`
}

func (h *Handler) CreateAccessRequest(c echo.Context) error {
	var body accessRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, outcome, err := h.svc.Admit(c.Request().Context(), AdmitInput{
		Kind:         KindAccessRequest,
		RequesterNIC: body.RequesterNIC,
		TargetKey:    body.DoctorSLMC,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(admitStatus(outcome), admitResponse{Item: item, Outcome: outcome})
}

type orderBody struct {
	RequesterNIC    string `json:"requester_nic"`
	PharmacyLicense string `json:"pharmacy_license"`
	PrescriptionID  *int64 `json:"prescription_id"`
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var body orderBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, outcome, err := h.svc.Admit(c.Request().Context(), AdmitInput{
		Kind:           KindPharmacyOrder,
		RequesterNIC:   body.RequesterNIC,
		TargetKey:      body.PharmacyLicense,
		PrescriptionID: body.PrescriptionID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(admitStatus(outcome), admitResponse{Item: item, Outcome: outcome})
}

type orderBatchBody struct {
	RequesterNIC    string  `json:"requester_nic"`
	PharmacyLicense string  `json:"pharmacy_license"`
	PrescriptionIDs []int64 `json:"prescription_ids"`
}

func (h *Handler) CreateOrderBatch(c echo.Context) error {
	var body orderBatchBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.AdmitBatch(c.Request().Context(), KindPharmacyOrder,
		body.RequesterNIC, body.PharmacyLicense, body.PrescriptionIDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) AdmitItem(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.TransitionAdmit(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CompleteItem(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.TransitionComplete(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CancelItem(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.TransitionCancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) OrderDetail(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	detail, err := h.svc.OrderDetail(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) Pending(c echo.Context) error {
	items, err := h.svc.PendingFor(c.Request().Context(),
		Kind(c.QueryParam("kind")), c.QueryParam("target"))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*WorkItem{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

// Status serves the requester's polling loop. A missing item is reported in
// the body rather than as a 404 so clients keep one code path; either way
// the response carries the interval to wait before asking again.
func (h *Handler) Status(c echo.Context) error {
	var prescriptionID *int64
	if raw := c.QueryParam("prescription_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription_id")
		}
		prescriptionID = &id
	}

	item, err := h.svc.LatestStatusFor(c.Request().Context(),
		Kind(c.QueryParam("kind")), c.QueryParam("requester_nic"),
		c.QueryParam("target"), prescriptionID)
	retryAfter := int(h.pollInterval / time.Second)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusOK, statusResponse{RetryAfterSeconds: retryAfter})
		}
		return httpError(err)
	}

	resp := statusResponse{Item: item}
	if item.Status == StatusPending {
		resp.RetryAfterSeconds = retryAfter
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) History(c echo.Context) error {
	params := pagination.FromContext(c)
	items, total, err := h.svc.HistoryFor(c.Request().Context(),
		Kind(c.QueryParam("kind")), c.QueryParam("target"),
		params.Limit, params.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*HistoryItem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

type admitResponse struct {
	Item    *WorkItem `json:"item"`
	Outcome Outcome   `json:"outcome"`
}

type statusResponse struct {
	Item *WorkItem `json:"item,omitempty"`
	// RetryAfterSeconds is set while the caller should keep polling; zero
	// once the item has left pending.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

func admitStatus(o Outcome) int {
	if o == OutcomeCreated {
		return http.StatusCreated
	}
	return http.StatusOK
}

func itemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid work item id")
	}
	return id, nil
}

func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Msg)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "work item not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, "invalid status transition")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
