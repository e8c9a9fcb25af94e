package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/database"
	"github.com/noah-isme/taskhub-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role models.UserRole) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedClass(t *testing.T, db *gorm.DB, name string, teacher models.User, students ...models.User) models.Class {
	t.Helper()
	class := models.Class{Name: name, TeacherID: teacher.ID, Day: "Monday"}
	require.NoError(t, db.Omit("Teacher", "Enrollments").Create(&class).Error)
	for position, student := range students {
		require.NoError(t, db.Omit("Student").Create(&models.ClassEnrollment{
			ClassID:   class.ID,
			StudentID: student.ID,
			Position:  position,
		}).Error)
	}
	return class
}

func seedActivity(t *testing.T, db *gorm.DB, class models.Class, title string, date time.Time) models.Activity {
	t.Helper()
	activity := models.Activity{ClassID: class.ID, Title: title, Date: date, CreatedBy: class.TeacherID}
	require.NoError(t, db.Omit("Class").Create(&activity).Error)
	return activity
}
