package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

// Handler exposes the owner-level ledger operations over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Credit adds funds to the addressed wallet.
func (h *Handler) Credit(c *fiber.Ctx) error {
	in, err := h.parseApply(c)
	if err != nil {
		return err
	}
	res, err := h.service.Credit(c.UserContext(), in)
	if err != nil {
		return mapError(err)
	}
	return writeApplied(c, res)
}

// Debit removes funds from the addressed wallet.
func (h *Handler) Debit(c *fiber.Ctx) error {
	in, err := h.parseApply(c)
	if err != nil {
		return err
	}
	res, err := h.service.Debit(c.UserContext(), in)
	if err != nil {
		return mapError(err)
	}
	return writeApplied(c, res)
}

// ConfirmWithdrawal closes a guide's withdrawal hold with the approval marker.
func (h *Handler) ConfirmWithdrawal(c *fiber.Ctx) error {
	var req confirmWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.ConfirmWithdrawal(c.UserContext(), ApplyInput{
		OwnerID:        c.Params("ownerId"),
		IdempotencyKey: req.IdempotencyKey,
		ReferenceType:  req.ReferenceType,
		ReferenceID:    req.ReferenceID,
		Actor:          req.Actor,
	})
	if err != nil {
		return mapError(err)
	}
	return writeApplied(c, res)
}

// Balance returns the addressed wallet's current balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	kind, err := wallet.ParseKind(c.Params("kind"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.service.GetBalance(c.UserContext(), c.Params("ownerId"), kind)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner_id":  balance.OwnerID,
		"kind":      balance.Kind,
		"balance":   balance.Amount,
		"timestamp": balance.AsOf,
	})
}

// History pages the addressed wallet's transactions, oldest first.
func (h *Handler) History(c *fiber.Ctx) error {
	kind, err := wallet.ParseKind(c.Params("kind"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	txs, err := h.service.GetHistory(c.UserContext(), c.Params("ownerId"), kind, Page{
		AfterID: c.Query("after_id"),
		Limit:   limit,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": toTransactionResponses(txs)})
}

func (h *Handler) parseApply(c *fiber.Ctx) (ApplyInput, error) {
	kind, err := wallet.ParseKind(c.Params("kind"))
	if err != nil {
		return ApplyInput{}, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	var req applyRequest
	if err := c.BodyParser(&req); err != nil {
		return ApplyInput{}, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return ApplyInput{}, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return ApplyInput{
		OwnerID:        c.Params("ownerId"),
		Kind:           kind,
		Amount:         req.Amount,
		Type:           Type(req.Type),
		IdempotencyKey: req.IdempotencyKey,
		ReferenceType:  req.ReferenceType,
		ReferenceID:    req.ReferenceID,
		Actor:          req.Actor,
	}, nil
}

func writeApplied(c *fiber.Ctx, res Result) error {
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(toApplyResponse(res))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds), errors.Is(err, wallet.ErrCreditLimitExceeded):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, wallet.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingIdempotencyKey):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
