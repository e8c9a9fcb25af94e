package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/middleware"
	"github.com/noah-isme/taskhub-api/internal/service"
	"github.com/noah-isme/taskhub-api/internal/utils"
)

// SubmissionHandler exposes the submission lifecycle over HTTP.
type SubmissionHandler struct {
	submissions service.SubmissionService
	directory   service.SubmissionDirectoryService
	attachments service.AttachmentService
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions service.SubmissionService, directory service.SubmissionDirectoryService, attachments service.AttachmentService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		directory:   directory,
		attachments: attachments,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission routes. submitLimiter guards the write paths when set.
func (h *SubmissionHandler) Register(router fiber.Router, submitLimiter fiber.Handler) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleStaff}

	writes := []fiber.Handler{}
	if submitLimiter != nil {
		writes = append(writes, submitLimiter)
	}

	router.Get("", h.find)
	router.Post("", append(writes, h.submit)...)
	router.Get("/student/:studentId", middleware.WithAuth(h.listForStudent, middleware.AuthOptions{SelfParam: "studentId"}))
	router.Get("/teacher/:teacherId", middleware.WithAuth(h.listForTeacher, staff))
	router.Put("/:id", append(writes, h.resubmit)...)
	router.Put("/:id/score", middleware.WithAuth(h.grade, staff))
	router.Delete("/:id", middleware.WithAuth(h.delete, staff))
	router.Get("/:id/download", h.download)
	router.Get("/:id/view", h.view)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Submit(c.UserContext(), actorFromContext(c), payload, optionalFile(c, "file"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) resubmit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionResubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Resubmit(c.UserContext(), actorFromContext(c), id, payload, optionalFile(c, "file"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission updated", submission)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Grade(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.submissions.Delete(c.UserContext(), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission deleted", nil)
}

func (h *SubmissionHandler) find(c *fiber.Ctx) error {
	var filter dto.SubmissionFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	actor := actorFromContext(c)
	if actor.IsStudent() && filter.StudentID != 0 && filter.StudentID != actor.ID {
		return respondError(c, h.logger, service.ErrForbidden)
	}

	submission, err := h.submissions.Find(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) listForStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	classID, err := parseQueryUint(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.submissions.ListForStudent(c.UserContext(), studentID, classID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, submissions, "submissions retrieved", fiber.Map{"count": len(submissions)})
}

func (h *SubmissionHandler) listForTeacher(c *fiber.Ctx) error {
	teacherID, err := parseUintParam(c, "teacherId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	classID, err := parseQueryUint(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.directory.TeacherView(c.UserContext(), actorFromContext(c), teacherID, classID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, submissions, "submissions retrieved", fiber.Map{"count": len(submissions)})
}

func (h *SubmissionHandler) download(c *fiber.Ctx) error {
	return h.serve(c, service.AttachmentDownload)
}

func (h *SubmissionHandler) view(c *fiber.Ctx) error {
	return h.serve(c, service.AttachmentView)
}

func (h *SubmissionHandler) serve(c *fiber.Ctx, mode service.AttachmentMode) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	resolution, err := h.attachments.ResolveSubmission(c.UserContext(), id, mode)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := serveAttachment(c, h.attachments, resolution); err != nil {
		return respondError(c, h.logger, err)
	}
	return nil
}
