package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/config"
	"github.com/noah-isme/taskhub-api/internal/database"
	"github.com/noah-isme/taskhub-api/internal/handler"
	"github.com/noah-isme/taskhub-api/internal/middleware"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
	"github.com/noah-isme/taskhub-api/internal/router"
	"github.com/noah-isme/taskhub-api/internal/service"
	"github.com/noah-isme/taskhub-api/pkg/cloudinary"
)

const legacyRoot = "/srv/taskhub"

type fakeStorage struct {
	mu        sync.Mutex
	uploads   []string
	destroyed []string
}

func (s *fakeStorage) Upload(_ context.Context, name string, _ io.Reader) (cloudinary.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, name)
	publicID := "taskhub/" + strings.TrimSuffix(name, filepath.Ext(name))
	return cloudinary.Asset{
		SecureURL:    "https://res.cloudinary.com/demo/raw/upload/v1/" + publicID + filepath.Ext(name),
		PublicID:     publicID,
		ResourceType: "raw",
	}, nil
}

func (s *fakeStorage) Destroy(_ context.Context, publicID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, publicID)
	return nil
}

type testApp struct {
	app     *fiber.App
	db      *gorm.DB
	fs      afero.Fs
	storage *fakeStorage
}

type appOptions struct {
	submitLimiter fiber.Handler
}

const tokenSecret = "handler-test-secret"

func bearerFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"role": string(user.Role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(tokenSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func setupApp(t *testing.T, opts ...appOptions) testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var options appOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	fs := afero.NewMemMapFs()
	storage := &fakeStorage{}

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	janitor := service.NewFileJanitor(storage, fs, legacyRoot, 16, logger)
	intake := service.NewFileIntake(storage, 1, logger)
	audit := service.NewAuditService(repository.NewAuditRepository(db), logger)
	scores := service.NewScoreExportService(classRepo, activityRepo, submissionRepo, nil, time.Minute, logger)
	attachments := service.NewAttachmentService(activityRepo, submissionRepo, fs, legacyRoot, logger)

	users := service.NewUserService(service.UserDependencies{
		Users: userRepo, Classes: classRepo, Audit: audit, Cleaner: janitor, Scores: scores,
	}, validate, logger)
	classes := service.NewClassService(service.ClassDependencies{
		Classes: classRepo, Users: userRepo, Cleaner: janitor, Audit: audit, Scores: scores,
	}, validate, logger)
	activities := service.NewActivityService(service.ActivityDependencies{
		Activities: activityRepo, Classes: classRepo, Intake: intake, Cleaner: janitor, Audit: audit, Scores: scores,
	}, validate, logger)
	submissions := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions: submissionRepo, Activities: activityRepo, Intake: intake, Cleaner: janitor, Audit: audit, Scores: scores,
	}, validate, logger)
	directory := service.NewSubmissionDirectoryService(classRepo, activityRepo, submissionRepo, logger)
	announcements := service.NewAnnouncementService(announcementRepo, classRepo, audit, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test", JWTSecret: "secret"}, router.Dependencies{
		UserHandler:         handler.NewUserHandler(users, logger),
		ClassHandler:        handler.NewClassHandler(classes, logger),
		ActivityHandler:     handler.NewActivityHandler(activities, attachments, scores, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissions, directory, attachments, logger),
		AnnouncementHandler: handler.NewAnnouncementHandler(announcements, attachments, logger),
		AuditHandler:        handler.NewAuditHandler(audit, logger),
		JWTMiddleware:       middleware.JWTProtected(middleware.JWTConfig{Secret: tokenSecret, Accounts: userRepo}),
		SubmitLimiter:       options.submitLimiter,
	})

	return testApp{app: app, db: db, fs: fs, storage: storage}
}

func (a testApp) user(t *testing.T, name string, role models.UserRole) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, a.db.Create(&user).Error)
	return user
}

func (a testApp) class(t *testing.T, name string, teacher models.User, students ...models.User) models.Class {
	t.Helper()
	class := models.Class{Name: name, TeacherID: teacher.ID, Day: "Monday"}
	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	require.NoError(t, repository.NewClassRepository(a.db).Create(context.Background(), &class, ids))
	return class
}

func (a testApp) activity(t *testing.T, class models.Class, title string, ref models.FileRef) models.Activity {
	t.Helper()
	activity := models.Activity{ClassID: class.ID, Title: title, Date: time.Now(), CreatedBy: class.TeacherID, Attachment: ref}
	require.NoError(t, repository.NewActivityRepository(a.db).Create(context.Background(), &activity))
	return activity
}

func (a testApp) send(t *testing.T, req *http.Request, as *models.User) *http.Response {
	t.Helper()
	if as != nil {
		req.Header.Set(fiber.HeaderAuthorization, bearerFor(t, *as))
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (a testApp) do(t *testing.T, method, path string, as *models.User, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return a.send(t, req, as)
}

func (a testApp) upload(t *testing.T, method, path string, as *models.User, fields map[string]string, fileField, fileName string, content []byte) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return a.send(t, req, as)
}

type envelope[T any] struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
	Details json.RawMessage `json:"details"`
	Meta    json.RawMessage `json:"meta"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target), string(body))
}

func requireStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode == status {
		return
	}
	body, _ := io.ReadAll(resp.Body)
	require.Equalf(t, status, resp.StatusCode, "body: %s", body)
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	schema, err := jsonschema.NewCompiler().Compile("file://" + filepath.ToSlash(path))
	require.NoError(t, err)
	return schema
}

func path(format string, args ...interface{}) string {
	return "/api/v1" + fmt.Sprintf(format, args...)
}

func decodeJSON(t *testing.T, raw json.RawMessage, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, target), string(raw))
}
