package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/database"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

type serviceFixture struct {
	db            *gorm.DB
	users         repository.UserRepository
	classes       repository.ClassRepository
	activities    repository.ActivityRepository
	submissions   repository.SubmissionRepository
	announcements repository.AnnouncementRepository
	audit         repository.AuditRepository
	validate      *validator.Validate
	logger        zerolog.Logger
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return serviceFixture{
		db:            db,
		users:         repository.NewUserRepository(db),
		classes:       repository.NewClassRepository(db),
		activities:    repository.NewActivityRepository(db),
		submissions:   repository.NewSubmissionRepository(db),
		announcements: repository.NewAnnouncementRepository(db),
		audit:         repository.NewAuditRepository(db),
		validate:      validator.New(),
		logger:        zerolog.New(io.Discard),
	}
}

func (f serviceFixture) user(t *testing.T, name string, role models.UserRole) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f serviceFixture) class(t *testing.T, name string, teacher models.User, students ...models.User) models.Class {
	t.Helper()
	class := models.Class{Name: name, TeacherID: teacher.ID, Day: "Monday"}
	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	require.NoError(t, f.classes.Create(context.Background(), &class, ids))
	return class
}

func (f serviceFixture) activity(t *testing.T, class models.Class, title string, date time.Time) models.Activity {
	t.Helper()
	activity := models.Activity{ClassID: class.ID, Title: title, Date: date, CreatedBy: class.TeacherID}
	require.NoError(t, f.activities.Create(context.Background(), &activity))
	return activity
}

type recordingCleaner struct {
	mu        sync.Mutex
	scheduled []models.FileRef
}

func (r *recordingCleaner) Schedule(ref models.FileRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, ref)
}

func (r *recordingCleaner) locations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	locations := make([]string, 0, len(r.scheduled))
	for _, ref := range r.scheduled {
		locations = append(locations, ref.Location)
	}
	return locations
}

type recordingInvalidator struct {
	mu      sync.Mutex
	classes []uint
}

func (r *recordingInvalidator) Invalidate(_ context.Context, classID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = append(r.classes, classID)
}

func uploadHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))
	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func repositoryAuditFilterAll() repository.AuditFilter {
	return repository.AuditFilter{Page: 1, PageSize: 100}
}
