package session

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tokoscout/internal/core/result"
)

// Handler exposes the console over HTTP: query-set editing, submission, the
// live snapshot, expansion toggles and history replay.
type Handler struct {
	console *Controller
}

func NewHandler(console *Controller) *Handler { return &Handler{console: console} }

type addQueryRequest struct {
	Value string `json:"value"`
}

func (h *Handler) HandleAddQuery(c *fiber.Ctx) error {
	var req addQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid body"})
	}
	return c.JSON(fiber.Map{"success": true, "queries": h.console.AddQuery(req.Value)})
}

func (h *Handler) HandleListQueries(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "queries": h.console.Queries()})
}

func (h *Handler) HandlePopQuery(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "queries": h.console.PopQuery()})
}

func (h *Handler) HandleRemoveQuery(c *fiber.Ctx) error {
	idx, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid index"})
	}
	return c.JSON(fiber.Map{"success": true, "queries": h.console.RemoveQuery(idx)})
}

type submitRequest struct {
	Platform string `json:"platform"`
}

func (h *Handler) HandleSubmit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid body"})
	}
	platform, err := result.ParsePlatform(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	id, err := h.console.Submit(c.Context(), platform)
	switch {
	case errors.Is(err, ErrNoQueries):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, ErrSessionActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "session_id": id})
}

func (h *Handler) HandleSnapshot(c *fiber.Ctx) error {
	return c.JSON(h.console.Snapshot())
}

type toggleRequest struct {
	Shop  int  `json:"shop"`
	Query *int `json:"query,omitempty"`
}

func (h *Handler) HandleToggle(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid body"})
	}
	if req.Query != nil {
		h.console.ToggleQuery(req.Shop, *req.Query)
	} else {
		h.console.ToggleShop(req.Shop)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleLoadHistory replays a stored session into the live view. It lives
// here rather than on the history handler because it mutates console state.
func (h *Handler) HandleLoadHistory(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid id"})
	}
	switch err := h.console.LoadHistory(id); {
	case errors.Is(err, ErrEntryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, ErrSessionActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(h.console.Snapshot())
}
