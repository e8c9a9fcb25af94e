package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskhub-api/internal/dto"
)

type recordingPublisher struct {
	events []SubmissionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event SubmissionEvent) {
	p.events = append(p.events, event)
}

func TestNATSEventPublisherSubjects(t *testing.T) {
	publisher := NewNATSEventPublisher(nil, " taskhub.submissions. ", zerolog.Nop()).(*natsEventPublisher)

	require.Equal(t, "taskhub.submissions.graded", publisher.subjectFor(EventSubmissionGraded))
	require.Equal(t, "taskhub.submissions.custom", publisher.subjectFor("custom"))

	// without a connection publishing is a no-op
	publisher.Publish(context.Background(), SubmissionEvent{Type: EventSubmissionSubmitted})
}

func TestSubmissionLifecyclePublishesEvents(t *testing.T) {
	h := newSubmissionHarness(t)
	ctx := context.Background()

	events := &recordingPublisher{}
	svc := NewSubmissionService(SubmissionDependencies{
		Submissions: h.submissions,
		Activities:  h.activities,
		Intake:      NewFileIntake(h.storage, 1, h.logger),
		Cleaner:     h.cleaner,
		Events:      events,
	}, h.validate, h.logger)

	created, err := svc.Submit(ctx, h.studentActor(), dto.SubmissionCreateRequest{ActivityID: h.activity.ID, StudentID: h.student.ID, Content: "answer"}, nil)
	require.NoError(t, err)

	_, err = svc.Grade(ctx, h.teacherActor(), created.ID, dto.SubmissionScoreRequest{Score: "90"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, h.teacherActor(), created.ID))

	require.Len(t, events.events, 3)
	require.Equal(t, EventSubmissionSubmitted, events.events[0].Type)
	require.Equal(t, h.class.ID, events.events[0].ClassID)
	require.Equal(t, h.student.ID, events.events[0].StudentID)

	graded := events.events[1]
	require.Equal(t, EventSubmissionGraded, graded.Type)
	require.NotNil(t, graded.Score)
	require.Equal(t, 90.0, *graded.Score)
	require.Equal(t, h.teacher.ID, graded.ActorID)

	require.Equal(t, EventSubmissionDeleted, events.events[2].Type)
}
