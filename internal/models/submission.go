package models

import "time"

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted   SubmissionStatus = "Submitted"
	SubmissionStatusResubmitted SubmissionStatus = "Resubmitted"
	SubmissionStatusGraded      SubmissionStatus = "Graded"
	// SubmissionStatusLate is accepted on read for records imported from older deployments.
	SubmissionStatusLate SubmissionStatus = "Late"
)

// Submission is a student's work for one activity. At most one exists per (activity, student).
type Submission struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	ActivityID  uint             `gorm:"not null;uniqueIndex:idx_submissions_activity_student" json:"activity_id"`
	StudentID   uint             `gorm:"not null;uniqueIndex:idx_submissions_activity_student;index" json:"student_id"`
	File        FileRef          `gorm:"embedded;embeddedPrefix:file_" json:"file"`
	Content     string           `gorm:"type:text" json:"content"`
	SubmittedAt time.Time        `gorm:"not null;index" json:"submitted_at"`
	Status      SubmissionStatus `gorm:"size:32;not null" json:"status"`
	Score       *float64         `json:"score"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Activity    Activity         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"activity"`
	Student     User             `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// HasPayload reports whether the submission carries a file or text content.
func (s Submission) HasPayload() bool {
	return !s.File.IsZero() || s.Content != ""
}

// Resubmit replaces the payload, clears the score and returns the file that is no longer referenced.
// A nil file keeps the previous one.
func (s *Submission) Resubmit(file *FileRef, content *string, at time.Time) FileRef {
	var orphan FileRef
	if file != nil && !file.IsZero() {
		if s.File.Location != file.Location {
			orphan = s.File
		}
		s.File = *file
	}
	if content != nil {
		s.Content = *content
	}
	s.Status = SubmissionStatusResubmitted
	s.Score = nil
	s.SubmittedAt = at
	return orphan
}

// Grade records a score and reports whether anything changed.
func (s *Submission) Grade(score float64) bool {
	if s.Status == SubmissionStatusGraded && s.Score != nil && *s.Score == score {
		return false
	}
	value := score
	s.Score = &value
	s.Status = SubmissionStatusGraded
	return true
}
