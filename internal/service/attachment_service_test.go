package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskhub-api/internal/models"
)

func newAttachmentFixture(t *testing.T) (serviceFixture, AttachmentService, afero.Fs, models.Class) {
	t.Helper()
	fixture := newServiceFixture(t)
	fs := afero.NewMemMapFs()
	teacher := fixture.user(t, "Teacher", models.RoleTeacher)
	class := fixture.class(t, "Art", teacher)
	service := NewAttachmentService(fixture.activities, fixture.submissions, fs, "/srv/app", fixture.logger)
	return fixture, service, fs, class
}

func createActivityWithAttachment(t *testing.T, fixture serviceFixture, class models.Class, ref models.FileRef) models.Activity {
	t.Helper()
	activity := models.Activity{ClassID: class.ID, Title: "Sketch", Date: time.Now(), CreatedBy: class.TeacherID, Attachment: ref}
	require.NoError(t, fixture.activities.Create(context.Background(), &activity))
	return activity
}

func TestResolveCloudAttachmentRedirects(t *testing.T) {
	fixture, service, _, class := newAttachmentFixture(t)
	ctx := context.Background()
	url := "https://res.cloudinary.com/demo/image/upload/v3/taskhub/brief.png"
	activity := createActivityWithAttachment(t, fixture, class, models.CloudFile(url, "taskhub/brief", "image"))

	download, err := service.ResolveActivity(ctx, activity.ID, AttachmentDownload)
	require.NoError(t, err)
	require.Equal(t, StrategyRedirect, download.Strategy)
	require.Equal(t, "https://res.cloudinary.com/demo/image/upload/fl_attachment/v3/taskhub/brief.png", download.URL)

	view, err := service.ResolveActivity(ctx, activity.ID, AttachmentView)
	require.NoError(t, err)
	require.Equal(t, url, view.URL)
}

func TestResolveLegacyAttachmentStreamsFromDisk(t *testing.T) {
	fixture, service, fs, class := newAttachmentFixture(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(fs, "/srv/app/uploads/activities/brief.pdf", []byte("%PDF-1.4\n%test"), 0o644))

	activity := createActivityWithAttachment(t, fixture, class, models.LegacyFile(`C:\old\server\uploads\activities\brief.pdf`))

	resolution, err := service.ResolveActivity(ctx, activity.ID, AttachmentDownload)
	require.NoError(t, err)
	require.Equal(t, StrategyStream, resolution.Strategy)
	require.Equal(t, "/srv/app/uploads/activities/brief.pdf", resolution.Path)
	require.Equal(t, "application/pdf", resolution.ContentType)
	require.Equal(t, `attachment; filename="brief.pdf"`, resolution.ContentDisposition())

	reader, err := service.Open(resolution)
	require.NoError(t, err)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4\n%test", string(body))

	inline, err := service.ResolveActivity(ctx, activity.ID, AttachmentView)
	require.NoError(t, err)
	require.Equal(t, `inline; filename="brief.pdf"`, inline.ContentDisposition())
}

func TestResolveReportsMissingFiles(t *testing.T) {
	fixture, service, _, class := newAttachmentFixture(t)
	ctx := context.Background()

	_, err := service.ResolveActivity(ctx, 404, AttachmentView)
	require.ErrorIs(t, err, ErrActivityNotFound)

	bare := createActivityWithAttachment(t, fixture, class, models.FileRef{})
	_, err = service.ResolveActivity(ctx, bare.ID, AttachmentView)
	require.ErrorIs(t, err, ErrAttachmentNotFound)

	gone := createActivityWithAttachment(t, fixture, class, models.LegacyFile("uploads/gone.pdf"))
	_, err = service.ResolveActivity(ctx, gone.ID, AttachmentDownload)
	require.ErrorIs(t, err, ErrAttachmentNotFound)

	_, err = service.Resolve(models.LegacyFile("../../etc/passwd"), AttachmentView)
	require.ErrorIs(t, err, ErrAttachmentNotFound)

	_, err = service.ResolveSubmission(ctx, 404, AttachmentView)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestResolveAnnouncementFile(t *testing.T) {
	_, service, fs, _ := newAttachmentFixture(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(fs, "/srv/app/uploads/announcements/flyer.txt", []byte("field trip"), 0o644))

	resolution, err := service.ResolveAnnouncementFile(ctx, "flyer.txt", AttachmentView)
	require.NoError(t, err)
	require.Equal(t, StrategyStream, resolution.Strategy)
	require.Equal(t, int64(len("field trip")), resolution.Size)
	require.Contains(t, resolution.ContentType, "text/plain")

	for _, name := range []string{"", "..", "../flyer.txt", `..\flyer.txt`, "nested/flyer.txt"} {
		_, err := service.ResolveAnnouncementFile(ctx, name, AttachmentView)
		require.ErrorIs(t, err, ErrAttachmentNotFound, name)
	}
}
