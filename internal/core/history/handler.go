package history

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler { return &Handler{store: store} }

func (h *Handler) HandleList(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "entries": h.store.List()})
}

func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid id"})
	}
	h.store.Delete(c.Context(), id)
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) HandleClear(c *fiber.Ctx) error {
	h.store.Clear(c.Context())
	return c.JSON(fiber.Map{"success": true})
}
