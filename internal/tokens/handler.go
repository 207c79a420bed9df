package tokens

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/shieldfi/shieldfi/internal/apperrors"
	"github.com/shieldfi/shieldfi/internal/metal"
)

// Handler exposes token HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a token HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
}

type distributeRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Create registers a token.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	asset, err := h.service.Create(c.UserContext(), metal.CreateTokenInput{Name: req.Name, Symbol: req.Symbol, Decimals: req.Decimals})
	if err != nil {
		return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(asset)
}

// Get returns token metadata.
func (h *Handler) Get(c *fiber.Ctx) error {
	asset, err := h.service.Get(c.UserContext(), c.Params("address"))
	if err != nil {
		return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(asset)
}

// Holders lists the token's holders.
func (h *Handler) Holders(c *fiber.Ctx) error {
	address := c.Params("address")
	holders, err := h.service.Holders(c.UserContext(), address)
	if err != nil {
		return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token":   address,
		"holders": holders,
	})
}

// Distribute sends tokens to a recipient. An unsuccessful result is reported with 422.
func (h *Handler) Distribute(c *fiber.Ctx) error {
	var req distributeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.Distribute(c.UserContext(), metal.DistributionRequest{
		TokenAddress:     c.Params("address"),
		RecipientAddress: req.Recipient,
		Amount:           req.Amount,
	})
	if err != nil {
		return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(result)
}
