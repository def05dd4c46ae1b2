package credit

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

// Handler exposes the credit-limit workflow over HTTP.
type Handler struct {
	manager  *Manager
	validate *validator.Validate
}

// NewHandler builds a credit HTTP handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager, validate: validator.New()}
}

type proposeRequest struct {
	NewLimit    int64  `json:"new_limit" validate:"gte=0"`
	Reason      string `json:"reason" validate:"required"`
	RequestedBy string `json:"requested_by" validate:"required"`
}

type decideRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
}

type changeResponse struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	OldLimit     int64      `json:"old_limit"`
	NewLimit     int64      `json:"new_limit"`
	ChangeAmount int64      `json:"change_amount"`
	Reason       string     `json:"reason"`
	RequestedBy  string     `json:"requested_by"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

// Propose records a pending limit change for a partner.
func (h *Handler) Propose(c *fiber.Ctx) error {
	var req proposeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	change, err := h.manager.Propose(c.UserContext(), ProposeInput{
		OwnerID:     c.Params("ownerId"),
		NewLimit:    req.NewLimit,
		Reason:      req.Reason,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(change))
}

// Approve finalizes a pending change in the partner's favor.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req decideRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	change, err := h.manager.Approve(c.UserContext(), c.Params("changeId"), req.ApproverID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(change))
}

// Reject finalizes a pending change without applying it.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req decideRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	change, err := h.manager.Reject(c.UserContext(), c.Params("changeId"), req.ApproverID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(change))
}

// History lists a partner's limit changes.
func (h *Handler) History(c *fiber.Ctx) error {
	changes, err := h.manager.History(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		return mapError(err)
	}
	out := make([]changeResponse, 0, len(changes))
	for _, change := range changes {
		out = append(out, toResponse(change))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"changes": out})
}

func toResponse(change LimitChange) changeResponse {
	return changeResponse{
		ID:           change.ID,
		OwnerID:      change.OwnerID,
		OldLimit:     change.OldLimit,
		NewLimit:     change.NewLimit,
		ChangeAmount: change.ChangeAmount,
		Reason:       change.Reason,
		RequestedBy:  change.RequestedBy,
		ApprovedBy:   change.ApprovedBy,
		Status:       string(change.Status),
		CreatedAt:    change.CreatedAt,
		DecidedAt:    change.DecidedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrLimitBelowUsage):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrAlreadyDecided):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrChangeNotFound), errors.Is(err, wallet.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidLimit):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
