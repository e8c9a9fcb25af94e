package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
)

func TestAnnouncementBoardFlow(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	teacher := fixture.user(t, "Teacher", models.RoleTeacher)
	student := fixture.user(t, "Student", models.RoleStudent)
	outsider := fixture.user(t, "Outsider", models.RoleStudent)
	class := fixture.class(t, "Literature", teacher, student)

	service := NewAnnouncementService(fixture.announcements, fixture.classes, nil, fixture.validate, fixture.logger)
	owner := Actor{ID: teacher.ID, Role: string(models.RoleTeacher)}
	pupil := Actor{ID: student.ID, Role: string(models.RoleStudent)}

	created, err := service.Create(ctx, owner, dto.AnnouncementCreateRequest{
		ClassID: class.ID,
		Title:   "Reading list",
		Content: `<p>Chapter 1</p><script>alert("x")</script>`,
	})
	require.NoError(t, err)
	require.Equal(t, "<p>Chapter 1</p>", created.Content)
	require.Equal(t, teacher.ID, created.Poster.ID)

	commented, err := service.AddComment(ctx, pupil, created.ID, dto.AnnouncementCommentRequest{Text: `Thanks <img src=x onerror=alert(1)>`})
	require.NoError(t, err)
	require.Len(t, commented.Comments, 1)
	require.NotContains(t, commented.Comments[0].Text, "onerror")
	require.Equal(t, student.ID, commented.Comments[0].Poster.ID)

	reacted, err := service.ToggleReaction(ctx, pupil, created.ID, dto.AnnouncementReactionRequest{Emoji: "👍"})
	require.NoError(t, err)
	require.Len(t, reacted.Reactions, 1)

	reacted, err = service.ToggleReaction(ctx, pupil, created.ID, dto.AnnouncementReactionRequest{Emoji: "👍"})
	require.NoError(t, err)
	require.Empty(t, reacted.Reactions)

	viewed, err := service.MarkViewed(ctx, pupil, created.ID, dto.AnnouncementViewRequest{})
	require.NoError(t, err)
	viewed, err = service.MarkViewed(ctx, pupil, created.ID, dto.AnnouncementViewRequest{})
	require.NoError(t, err)
	require.Equal(t, []uint{student.ID}, viewed.ViewedBy)

	byStudent, err := service.List(ctx, dto.AnnouncementFilter{StudentID: &student.ID})
	require.NoError(t, err)
	require.Len(t, byStudent, 1)

	none, err := service.List(ctx, dto.AnnouncementFilter{StudentID: &outsider.ID})
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = service.List(ctx, dto.AnnouncementFilter{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	title := "Updated list"
	_, err = service.Update(ctx, pupil, created.ID, dto.AnnouncementUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrClassAccessDenied)

	updated, err := service.Update(ctx, owner, created.ID, dto.AnnouncementUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Updated list", updated.Title)

	require.NoError(t, service.Delete(ctx, owner, created.ID))
	_, err = service.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrAnnouncementNotFound)

	var comments int64
	require.NoError(t, fixture.db.Model(&models.AnnouncementComment{}).Count(&comments).Error)
	require.Zero(t, comments)
}

func TestAnnouncementCreateGuards(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	teacher := fixture.user(t, "Teacher", models.RoleTeacher)
	other := fixture.user(t, "Other", models.RoleTeacher)
	class := fixture.class(t, "Statistics", teacher)
	service := NewAnnouncementService(fixture.announcements, fixture.classes, nil, fixture.validate, fixture.logger)

	_, err := service.Create(ctx, Actor{ID: other.ID, Role: "teacher"}, dto.AnnouncementCreateRequest{ClassID: class.ID, Title: "Hi", Content: "Hello"})
	require.ErrorIs(t, err, ErrClassAccessDenied)

	_, err = service.Create(ctx, Actor{ID: teacher.ID, Role: "teacher"}, dto.AnnouncementCreateRequest{ClassID: 999, Title: "Hi", Content: "Hello"})
	require.ErrorIs(t, err, ErrClassNotFound)

	_, err = service.Create(ctx, Actor{ID: teacher.ID, Role: "teacher"}, dto.AnnouncementCreateRequest{ClassID: class.ID, Title: "Hi", Content: "<script>x</script>"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = service.AddComment(ctx, Actor{ID: teacher.ID}, 999, dto.AnnouncementCommentRequest{Text: "hello"})
	require.ErrorIs(t, err, ErrAnnouncementNotFound)
}

func TestAnnouncementStudentsCannotActForOthers(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	teacher := fixture.user(t, "Teacher", models.RoleTeacher)
	ana := fixture.user(t, "Ana", models.RoleStudent)
	ben := fixture.user(t, "Ben", models.RoleStudent)
	class := fixture.class(t, "Poetry", teacher, ana, ben)

	service := NewAnnouncementService(fixture.announcements, fixture.classes, nil, fixture.validate, fixture.logger)
	created, err := service.Create(ctx, Actor{ID: teacher.ID, Role: "teacher"}, dto.AnnouncementCreateRequest{ClassID: class.ID, Title: "Haiku", Content: "Write one"})
	require.NoError(t, err)

	pupil := Actor{ID: ben.ID, Role: "student"}
	_, err = service.AddComment(ctx, pupil, created.ID, dto.AnnouncementCommentRequest{Text: "hi", PostedBy: ana.ID})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = service.ToggleReaction(ctx, pupil, created.ID, dto.AnnouncementReactionRequest{Emoji: "👍", UserID: ana.ID})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = service.MarkViewed(ctx, pupil, created.ID, dto.AnnouncementViewRequest{UserID: ana.ID})
	require.ErrorIs(t, err, ErrForbidden)
}
