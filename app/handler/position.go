package handler

import (
	m "binkeeper/internal/model"

	"github.com/gofiber/fiber/v2"
)

const defaultActivityLimit = 20

type PositionHandler struct {
	k KeeperService
	r ActivityRetriever
}

func NewPositionHandler(k KeeperService, r ActivityRetriever) *PositionHandler {
	return &PositionHandler{
		k: k,
		r: r,
	}
}

func (h *PositionHandler) InitRoute(app *fiber.App) {

	app.Get("/status", h.Status)
	app.Get("/activities", h.Activities)
	app.Get("/position/inrange", h.InRange)
}

func (h *PositionHandler) Status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.k.Snapshot())
}

func (h *PositionHandler) Activities(c *fiber.Ctx) error {

	limit := c.QueryInt("limit", defaultActivityLimit)
	if limit <= 0 || limit > 500 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}

	acts, err := h.r.RecentActivities(limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "RecentActivities 오류 발생. "+err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(acts)
}

// InRange answers for ?id=, or for the managed position when id is absent.
func (h *PositionHandler) InRange(c *fiber.Ctx) error {

	id := c.Query("id")
	if id == "" {
		id = h.k.Snapshot().PositionID
	}
	if id == "" {
		return fiber.NewError(fiber.StatusNotFound, "no managed position")
	}

	inRange, err := h.k.InRange(c.UserContext(), m.PositionID(id))
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "InRange 오류 발생. "+err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(InRangeResp{
		PositionID: id,
		InRange:    inRange,
	})
}
