package budget

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the corporate budget flow over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a budget HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type scopeRequest struct {
	CompanyID     string `json:"company_id" validate:"required"`
	Department    string `json:"department" validate:"required"`
	FiscalYear    int    `json:"fiscal_year" validate:"required,gte=2000"`
	FiscalQuarter int    `json:"fiscal_quarter" validate:"required,gte=1,lte=4"`
}

type allocateRequest struct {
	scopeRequest
	Amount         int64   `json:"amount" validate:"required,gt=0"`
	AlertThreshold float64 `json:"alert_threshold" validate:"gte=0,lte=1"`
}

type reserveRequest struct {
	scopeRequest
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"required"`
}

type finalizeRequest struct {
	scopeRequest
	Reference string `json:"reference" validate:"required"`
}

type budgetResponse struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	Department      string    `json:"department"`
	FiscalYear      int       `json:"fiscal_year"`
	FiscalQuarter   int       `json:"fiscal_quarter"`
	AllocatedAmount int64     `json:"allocated_amount"`
	SpentAmount     int64     `json:"spent_amount"`
	PendingAmount   int64     `json:"pending_amount"`
	AlertThreshold  float64   `json:"alert_threshold"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Allocate creates a budget for a fiscal scope.
func (h *Handler) Allocate(c *fiber.Ctx) error {
	var req allocateRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	b, err := h.service.Allocate(c.UserContext(), AllocateInput{
		Scope:          req.scope(),
		Amount:         req.Amount,
		AlertThreshold: req.AlertThreshold,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toBudgetResponse(b))
}

// Reserve sets budget aside for a booking request.
func (h *Handler) Reserve(c *fiber.Ctx) error {
	var req reserveRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	b, err := h.service.Reserve(c.UserContext(), req.scope(), req.Amount, req.Reference)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toBudgetResponse(b))
}

// Commit converts a reservation into spend.
func (h *Handler) Commit(c *fiber.Ctx) error {
	var req finalizeRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	b, err := h.service.Commit(c.UserContext(), req.scope(), req.Reference)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toBudgetResponse(b))
}

// Release returns a reservation to the allocation.
func (h *Handler) Release(c *fiber.Ctx) error {
	var req finalizeRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	b, err := h.service.Release(c.UserContext(), req.scope(), req.Reference)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toBudgetResponse(b))
}

// Status returns the budget for a fiscal scope.
func (h *Handler) Status(c *fiber.Ctx) error {
	year, err := c.ParamsInt("year")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid fiscal year")
	}
	quarter, err := c.ParamsInt("quarter")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid fiscal quarter")
	}
	b, err := h.service.Get(c.UserContext(), Scope{
		CompanyID:     c.Params("companyId"),
		Department:    c.Params("department"),
		FiscalYear:    year,
		FiscalQuarter: quarter,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toBudgetResponse(b))
}

func (h *Handler) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func (r scopeRequest) scope() Scope {
	return Scope{
		CompanyID:     r.CompanyID,
		Department:    r.Department,
		FiscalYear:    r.FiscalYear,
		FiscalQuarter: r.FiscalQuarter,
	}
}

func toBudgetResponse(b Budget) budgetResponse {
	return budgetResponse{
		ID:              b.ID,
		CompanyID:       b.Scope.CompanyID,
		Department:      b.Scope.Department,
		FiscalYear:      b.Scope.FiscalYear,
		FiscalQuarter:   b.Scope.FiscalQuarter,
		AllocatedAmount: b.AllocatedAmount,
		SpentAmount:     b.SpentAmount,
		PendingAmount:   b.PendingAmount,
		AlertThreshold:  b.AlertThreshold,
		UpdatedAt:       b.UpdatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrReservationNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExists), errors.Is(err, ErrAlreadyFinalized):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrStaleAmounts):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
