package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/models"
)

func TestClassRepositoryKeepsRosterOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClassRepository(db)
	ctx := context.Background()

	teacher := seedUser(t, db, "Teacher", models.RoleTeacher)
	ann := seedUser(t, db, "Ann", models.RoleStudent)
	bea := seedUser(t, db, "Bea", models.RoleStudent)
	cal := seedUser(t, db, "Cal", models.RoleStudent)

	class := models.Class{Name: "Algebra", TeacherID: teacher.ID, Day: "Tuesday"}
	require.NoError(t, repo.Create(ctx, &class, []uint{cal.ID, ann.ID}))

	loaded, err := repo.GetByID(ctx, class.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{cal.ID, ann.ID}, loaded.StudentIDs())
	require.Equal(t, "Teacher", loaded.Teacher.Name)
	require.Equal(t, "Cal", loaded.Students()[0].Name)

	require.NoError(t, repo.ReplaceStudents(ctx, class.ID, []uint{bea.ID, ann.ID}))
	loaded, err = repo.GetByID(ctx, class.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{bea.ID, ann.ID}, loaded.StudentIDs())

	classes, err := repo.ListForStudent(ctx, bea.ID)
	require.NoError(t, err)
	require.Len(t, classes, 1)

	ids, err := repo.ClassIDsForStudent(ctx, cal.ID)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestClassRepositoryRejectsDuplicateName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClassRepository(db)
	ctx := context.Background()

	teacher := seedUser(t, db, "Teacher", models.RoleTeacher)
	require.NoError(t, repo.Create(ctx, &models.Class{Name: "Biology", TeacherID: teacher.ID, Day: "Friday"}, nil))

	err := repo.Create(ctx, &models.Class{Name: "Biology", TeacherID: teacher.ID, Day: "Monday"}, nil)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestClassRepositoryDeleteCascadesOwnedRecords(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClassRepository(db)
	ctx := context.Background()

	teacher := seedUser(t, db, "Teacher", models.RoleTeacher)
	student := seedUser(t, db, "Student", models.RoleStudent)
	class := seedClass(t, db, "History", teacher, student)
	other := seedClass(t, db, "Art", teacher, student)

	activity := models.Activity{
		ClassID:    class.ID,
		Title:      "Essay",
		Date:       time.Now(),
		CreatedBy:  teacher.ID,
		Attachment: models.LegacyFile("uploads/brief.pdf"),
	}
	require.NoError(t, db.Omit("Class").Create(&activity).Error)
	kept := seedActivity(t, db, other, "Sketch", time.Now())

	submission := models.Submission{
		ActivityID:  activity.ID,
		StudentID:   student.ID,
		File:        models.CloudFile("https://res.cloudinary.com/demo/raw/upload/v1/essay.pdf", "essay", "raw"),
		SubmittedAt: time.Now(),
		Status:      models.SubmissionStatusSubmitted,
	}
	require.NoError(t, db.Omit("Activity", "Student").Create(&submission).Error)

	announcement := models.Announcement{ClassID: class.ID, Title: "Hello", Content: "Welcome", PostedBy: teacher.ID, DatePosted: time.Now()}
	require.NoError(t, db.Omit("Poster", "Comments", "Reactions", "Views").Create(&announcement).Error)
	require.NoError(t, db.Create(&models.AnnouncementComment{AnnouncementID: announcement.ID, Text: "hi", PostedBy: student.ID, Date: time.Now()}).Error)

	files, err := repo.Delete(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, models.FileKindCloud, files[0].Kind)
	require.Equal(t, models.FileKindLegacyRelative, files[1].Kind)

	var count int64
	require.NoError(t, db.Model(&models.Activity{}).Where("class_id = ?", class.ID).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Announcement{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.AnnouncementComment{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.ClassEnrollment{}).Where("class_id = ?", class.ID).Count(&count).Error)
	require.Zero(t, count)

	_, err = NewActivityRepository(db).GetByID(ctx, kept.ID)
	require.NoError(t, err)

	_, err = repo.Delete(ctx, class.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
