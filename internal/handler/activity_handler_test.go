package handler_test

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
)

func TestActivityCreateLockAndDelete(t *testing.T) {
	app := setupApp(t)
	teacher := app.user(t, "Knuth", models.RoleTeacher)
	student := app.user(t, "Sam", models.RoleStudent)
	class := app.class(t, "Algorithms", teacher, student)

	resp := app.do(t, http.MethodPost, path("/activities"), &student, map[string]interface{}{
		"class_id": class.ID, "title": "Sneaky", "date": "2026-10-19",
	})
	requireStatus(t, resp, fiber.StatusForbidden)

	resp = app.do(t, http.MethodPost, path("/activities"), &teacher, map[string]interface{}{
		"class_id": class.ID, "title": "Sorting", "date": "2026-10-19", "total_points": 100,
	})
	requireStatus(t, resp, fiber.StatusCreated)

	var created envelope[dto.ActivityResponse]
	decodeResponse(t, resp, &created)
	require.Equal(t, "Sorting", created.Data.Title)
	require.Equal(t, class.ID, created.Data.ClassID)
	require.False(t, created.Data.IsLocked)
	require.Nil(t, created.Data.Attachment)

	resp = app.do(t, http.MethodPatch, path("/activities/%d/lock", created.Data.ID), &teacher, map[string]interface{}{"is_locked": true})
	requireStatus(t, resp, fiber.StatusOK)
	var locked envelope[dto.ActivityResponse]
	decodeResponse(t, resp, &locked)
	require.True(t, locked.Data.IsLocked)
	require.Equal(t, "activity locked", locked.Message)

	resp = app.do(t, http.MethodPost, path("/submissions"), &student, map[string]interface{}{
		"activity_id": created.Data.ID, "student_id": student.ID, "content": "done",
	})
	requireStatus(t, resp, fiber.StatusForbidden)

	resp = app.do(t, http.MethodGet, path("/activities?classId=%d", class.ID), &student, nil)
	requireStatus(t, resp, fiber.StatusOK)
	var listed envelope[[]dto.ActivityResponse]
	decodeResponse(t, resp, &listed)
	require.Len(t, listed.Data, 1)

	resp = app.do(t, http.MethodDelete, path("/activities/%d", created.Data.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusOK)

	resp = app.do(t, http.MethodGet, path("/activities/%d", created.Data.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusNotFound)
}

func TestActivityCreateWithAttachment(t *testing.T) {
	app := setupApp(t)
	teacher := app.user(t, "Liskov", models.RoleTeacher)
	class := app.class(t, "Abstractions", teacher)

	resp := app.upload(t, http.MethodPost, path("/activities"), &teacher, map[string]string{
		"class_id": strconv.FormatUint(uint64(class.ID), 10), "title": "Reading", "date": "2026-10-19",
	}, "attachment", "brief.txt", []byte("read chapter two"))
	requireStatus(t, resp, fiber.StatusCreated)

	var created envelope[dto.ActivityResponse]
	decodeResponse(t, resp, &created)
	require.Equal(t, class.ID, created.Data.ClassID)
	require.NotNil(t, created.Data.Attachment)
	require.Equal(t, "brief.txt", created.Data.Attachment.Name)
	require.Equal(t, []string{"brief.txt"}, app.storage.uploads)

	resp = app.do(t, http.MethodGet, path("/activities/%d/view", created.Data.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusFound)
	require.Equal(t, "https://res.cloudinary.com/demo/raw/upload/v1/taskhub/brief.txt", resp.Header.Get(fiber.HeaderLocation))
}

func TestActivityLegacyAttachmentStreams(t *testing.T) {
	app := setupApp(t)
	teacher := app.user(t, "Ritchie", models.RoleTeacher)
	class := app.class(t, "Systems", teacher)
	require.NoError(t, afero.WriteFile(app.fs, legacyRoot+"/uploads/activities/notes.txt", []byte("legacy notes"), 0o644))

	activity := app.activity(t, class, "Pointers", models.LegacyFile("uploads/activities/notes.txt"))
	missing := app.activity(t, class, "Gone", models.LegacyFile("uploads/activities/missing.txt"))

	resp := app.do(t, http.MethodGet, path("/activities/%d/download", activity.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusOK)
	require.Equal(t, `attachment; filename="notes.txt"`, resp.Header.Get(fiber.HeaderContentDisposition))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "legacy notes", string(body))

	resp = app.do(t, http.MethodGet, path("/activities/%d/view", activity.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusOK)
	require.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentDisposition), "inline"))

	resp = app.do(t, http.MethodGet, path("/activities/%d/download", missing.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusNotFound)
}

func TestActivityScoreExport(t *testing.T) {
	app := setupApp(t)
	teacher := app.user(t, "Dijkstra", models.RoleTeacher)
	ana := app.user(t, "Ana", models.RoleStudent)
	ben := app.user(t, "Ben", models.RoleStudent)
	class := app.class(t, "Graphs", teacher, ana, ben)
	quiz := app.activity(t, class, "Quiz", models.FileRef{})
	app.activity(t, class, "Quiz", models.FileRef{})

	resp := app.do(t, http.MethodPost, path("/submissions"), &ana, map[string]interface{}{
		"activity_id": quiz.ID, "student_id": ana.ID, "content": "answers",
	})
	requireStatus(t, resp, fiber.StatusCreated)
	var submitted envelope[dto.SubmissionResponse]
	decodeResponse(t, resp, &submitted)

	resp = app.do(t, http.MethodPut, path("/submissions/%d/score", submitted.Data.ID), &teacher, map[string]interface{}{"score": 92.5})
	requireStatus(t, resp, fiber.StatusOK)

	resp = app.do(t, http.MethodGet, path("/activities/export-scores?classId=%d", class.ID), &ana, nil)
	requireStatus(t, resp, fiber.StatusForbidden)

	resp = app.do(t, http.MethodGet, path("/activities/export-scores?classId=%d", class.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusOK)
	var export envelope[dto.ScoreExportResponse]
	decodeResponse(t, resp, &export)
	require.Equal(t, []string{"Name", "Email", "Quiz", "Quiz (2)"}, export.Data.Columns)
	require.Len(t, export.Data.Rows, 2)
	require.Equal(t, []string{"92.5", ""}, export.Data.Rows[0].Scores)

	resp = app.do(t, http.MethodGet, path("/activities/export-scores?classId=%d&format=csv", class.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusOK)
	require.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/csv")
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "class-")
	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"Ana", "ana@example.com", "92.5", ""}, records[1])

	resp = app.do(t, http.MethodGet, path("/activities/export-scores?classId=%d&format=xml", class.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusBadRequest)

	resp = app.do(t, http.MethodGet, path("/activities/export-scores"), &teacher, nil)
	requireStatus(t, resp, fiber.StatusBadRequest)

	resp = app.do(t, http.MethodGet, path("/activities/export-scores?classId=9999"), &teacher, nil)
	requireStatus(t, resp, fiber.StatusNotFound)
}

func TestActivityTodaySchedule(t *testing.T) {
	app := setupApp(t)
	teacher := app.user(t, "Lamport", models.RoleTeacher)
	ana := app.user(t, "Ana", models.RoleStudent)
	ben := app.user(t, "Ben", models.RoleStudent)
	class := app.class(t, "Clocks", teacher, ana)
	app.activity(t, class, "Logical time", models.FileRef{})

	resp := app.do(t, http.MethodGet, path("/activities/schedule/today"), &ana, nil)
	requireStatus(t, resp, fiber.StatusOK)
	var today envelope[[]dto.ActivityResponse]
	decodeResponse(t, resp, &today)
	require.Len(t, today.Data, 1)
	require.Equal(t, "Logical time", today.Data[0].Title)

	resp = app.do(t, http.MethodGet, path("/activities/schedule/today?userId=%d", ana.ID), &ben, nil)
	requireStatus(t, resp, fiber.StatusForbidden)

	resp = app.do(t, http.MethodGet, path("/activities/schedule/today?userId=%d", ben.ID), &teacher, nil)
	requireStatus(t, resp, fiber.StatusOK)
	var empty envelope[[]dto.ActivityResponse]
	decodeResponse(t, resp, &empty)
	require.Empty(t, empty.Data)
}
