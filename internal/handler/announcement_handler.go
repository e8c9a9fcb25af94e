package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/middleware"
	"github.com/noah-isme/taskhub-api/internal/service"
	"github.com/noah-isme/taskhub-api/internal/utils"
)

// AnnouncementHandler exposes the class announcement board.
type AnnouncementHandler struct {
	announcements service.AnnouncementService
	attachments   service.AttachmentService
	logger        zerolog.Logger
}

// NewAnnouncementHandler constructs the handler.
func NewAnnouncementHandler(announcements service.AnnouncementService, attachments service.AttachmentService, logger zerolog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcements: announcements,
		attachments:   attachments,
		logger:        logger.With().Str("component", "announcement_handler").Logger(),
	}
}

// Register attaches announcement routes to the router group.
func (h *AnnouncementHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleStaff}
	user := middleware.AuthOptions{RequireUser: true}

	router.Get("", h.list)
	router.Post("", middleware.WithAuth(h.create, staff))
	router.Get("/files/:filename", h.file)
	router.Get("/:id", h.get)
	router.Put("/:id", middleware.WithAuth(h.update, staff))
	router.Delete("/:id", middleware.WithAuth(h.delete, staff))
	router.Post("/:id/comments", middleware.WithAuth(h.comment, user))
	router.Post("/:id/reactions", middleware.WithAuth(h.react, user))
	router.Post("/:id/view", middleware.WithAuth(h.markViewed, user))
}

func (h *AnnouncementHandler) list(c *fiber.Ctx) error {
	var filter dto.AnnouncementFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	actor := actorFromContext(c)
	if actor.IsStudent() && filter.ClassID == nil {
		if filter.StudentID != nil && *filter.StudentID != actor.ID {
			return respondError(c, h.logger, service.ErrForbidden)
		}
		self := actor.ID
		filter.StudentID = &self
	}

	announcements, err := h.announcements.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, announcements, "announcements retrieved", fiber.Map{"count": len(announcements)})
}

func (h *AnnouncementHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	announcement, err := h.announcements.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "announcement retrieved", announcement)
}

func (h *AnnouncementHandler) create(c *fiber.Ctx) error {
	var payload dto.AnnouncementCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.announcements.Create(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "announcement created", announcement)
}

func (h *AnnouncementHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnnouncementUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.announcements.Update(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "announcement updated", announcement)
}

func (h *AnnouncementHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.announcements.Delete(c.UserContext(), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "announcement deleted", nil)
}

func (h *AnnouncementHandler) comment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnnouncementCommentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.announcements.AddComment(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment added", announcement)
}

func (h *AnnouncementHandler) react(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnnouncementReactionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.announcements.ToggleReaction(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "reaction updated", announcement)
}

func (h *AnnouncementHandler) markViewed(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnnouncementViewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	announcement, err := h.announcements.MarkViewed(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "announcement viewed", announcement)
}

func (h *AnnouncementHandler) file(c *fiber.Ctx) error {
	mode := service.AttachmentView
	if c.QueryBool("download") {
		mode = service.AttachmentDownload
	}

	resolution, err := h.attachments.ResolveAnnouncementFile(c.UserContext(), c.Params("filename"), mode)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := serveAttachment(c, h.attachments, resolution); err != nil {
		return respondError(c, h.logger, err)
	}
	return nil
}
