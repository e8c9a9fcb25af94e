package handler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/middleware"
	"github.com/noah-isme/taskhub-api/internal/service"
	"github.com/noah-isme/taskhub-api/internal/utils"
)

// ActivityHandler exposes the activity catalog, its attachments and the score export.
type ActivityHandler struct {
	activities  service.ActivityService
	attachments service.AttachmentService
	scores      service.ScoreExportService
	logger      zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(activities service.ActivityService, attachments service.AttachmentService, scores service.ScoreExportService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activities:  activities,
		attachments: attachments,
		scores:      scores,
		logger:      logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleStaff}

	router.Get("", h.list)
	router.Post("", middleware.WithAuth(h.create, staff))
	router.Get("/export-scores", middleware.WithAuth(h.exportScores, staff))
	router.Get("/schedule/today", h.todaySchedule)
	router.Get("/:id", h.get)
	router.Put("/:id", middleware.WithAuth(h.update, staff))
	router.Delete("/:id", middleware.WithAuth(h.delete, staff))
	router.Patch("/:id/lock", middleware.WithAuth(h.lock, staff))
	router.Get("/:id/download", h.download)
	router.Get("/:id/view", h.view)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	classID, err := parseQueryUint(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	activities, err := h.activities.List(c.UserContext(), dto.ActivityFilter{ClassID: classID})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "activities retrieved", activities)
}

func (h *ActivityHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	activity, err := h.activities.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "activity retrieved", activity)
}

func (h *ActivityHandler) create(c *fiber.Ctx) error {
	var payload dto.ActivityCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	activity, err := h.activities.Create(c.UserContext(), actorFromContext(c), payload, optionalFile(c, "attachment"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity created", activity)
}

func (h *ActivityHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ActivityUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	activity, err := h.activities.Update(c.UserContext(), actorFromContext(c), id, payload, optionalFile(c, "attachment"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "activity updated", activity)
}

func (h *ActivityHandler) lock(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ActivityLockRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	activity, err := h.activities.SetLock(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	message := "activity unlocked"
	if activity.IsLocked {
		message = "activity locked"
	}
	return utils.SendSuccess(c, message, activity)
}

func (h *ActivityHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.activities.Delete(c.UserContext(), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "activity deleted", nil)
}

func (h *ActivityHandler) todaySchedule(c *fiber.Ctx) error {
	userID, err := parseQueryUint(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := actorFromContext(c)
	studentID := actor.ID
	if userID != nil {
		studentID = *userID
	}
	if actor.IsStudent() && studentID != actor.ID {
		return respondError(c, h.logger, service.ErrForbidden)
	}

	activities, err := h.activities.TodaySchedule(c.UserContext(), studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "today's activities", activities)
}

func (h *ActivityHandler) exportScores(c *fiber.Ctx) error {
	var query dto.ScoreExportRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format != "" && format != "json" && format != "csv" {
		return utils.Fail(c, fiber.StatusBadRequest, "format must be json or csv", fiber.Map{"fields": []string{"format"}})
	}

	export, err := h.scores.Export(c.UserContext(), query.ClassID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if format != "csv" {
		return utils.SendSuccess(c, "scores exported", export)
	}

	var buf bytes.Buffer
	if err := service.WriteScoresCSV(&buf, export); err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="class-%d-scores.csv"`, query.ClassID))
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

func (h *ActivityHandler) download(c *fiber.Ctx) error {
	return h.serve(c, service.AttachmentDownload)
}

func (h *ActivityHandler) view(c *fiber.Ctx) error {
	return h.serve(c, service.AttachmentView)
}

func (h *ActivityHandler) serve(c *fiber.Ctx, mode service.AttachmentMode) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	resolution, err := h.attachments.ResolveActivity(c.UserContext(), id, mode)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := serveAttachment(c, h.attachments, resolution); err != nil {
		return respondError(c, h.logger, err)
	}
	return nil
}
