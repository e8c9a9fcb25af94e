package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskhub-api/internal/models"
)

func TestAnnouncementRepositoryReactionsAndViews(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnnouncementRepository(db)
	ctx := context.Background()

	teacher := seedUser(t, db, "Teacher", models.RoleTeacher)
	student := seedUser(t, db, "Student", models.RoleStudent)
	class := seedClass(t, db, "Music", teacher, student)

	announcement := models.Announcement{ClassID: class.ID, Title: "Concert", Content: "Friday", PostedBy: teacher.ID, DatePosted: time.Now()}
	require.NoError(t, repo.Create(ctx, &announcement))

	reaction := models.AnnouncementReaction{AnnouncementID: announcement.ID, UserID: student.ID, Emoji: "👍"}
	present, err := repo.ToggleReaction(ctx, reaction)
	require.NoError(t, err)
	require.True(t, present)

	present, err = repo.ToggleReaction(ctx, reaction)
	require.NoError(t, err)
	require.False(t, present)

	_, err = repo.ToggleReaction(ctx, reaction)
	require.NoError(t, err)

	require.NoError(t, repo.MarkViewed(ctx, announcement.ID, student.ID, time.Now()))
	require.NoError(t, repo.MarkViewed(ctx, announcement.ID, student.ID, time.Now()))

	require.NoError(t, repo.AddComment(ctx, &models.AnnouncementComment{AnnouncementID: announcement.ID, Text: "See you", PostedBy: student.ID, Date: time.Now()}))

	loaded, err := repo.GetByID(ctx, announcement.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Reactions, 1)
	require.Len(t, loaded.Views, 1)
	require.Len(t, loaded.Comments, 1)
	require.Equal(t, "Student", loaded.Comments[0].Poster.Name)
	require.Equal(t, "Teacher", loaded.Poster.Name)

	listed, err := repo.ListByClasses(ctx, []uint{class.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, repo.Delete(ctx, announcement.ID))
	var count int64
	require.NoError(t, db.Model(&models.AnnouncementReaction{}).Count(&count).Error)
	require.Zero(t, count)
}
