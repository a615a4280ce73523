package domain

import (
	"fmt"
	"slices"
	"time"
)

// DefaultExamDuration applies when a create request carries no duration.
const DefaultExamDuration = 60

type Question struct {
	Question string   `json:"question" dynamodbav:"question" validate:"required"`
	Options  []string `json:"options" dynamodbav:"options" validate:"min=2,dive,required"`
	Correct  *int     `json:"correct,omitempty" dynamodbav:"correct" validate:"required"`
}

type Exam struct {
	ExamID          string     `json:"id" dynamodbav:"exam_id"`
	Title           string     `json:"title" dynamodbav:"title"`
	Questions       []Question `json:"questions" dynamodbav:"questions"`
	DurationMinutes int        `json:"duration" dynamodbav:"duration"`
	AuthorID        string     `json:"authorId" dynamodbav:"author_id"`
	AssignedTo      []string   `json:"assignedTo" dynamodbav:"assigned_to"`
	CreatedAt       time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

// ExamInput is shared by create and update.
type ExamInput struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Questions  []Question `json:"questions" validate:"required,min=1,dive"`
	AssignedTo []string   `json:"assignedTo"`
	Duration   int        `json:"duration" validate:"gte=0,lte=600"`
}

// ExamSummary is a list row.
type ExamSummary struct {
	Exam
	AuthorName      string `json:"authorName,omitempty"`
	SubmissionCount int    `json:"submissionCount"`
}

// Validate checks the structural invariants the tags cannot express.
func (e *Exam) Validate() error {
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("duration must be positive: %w", ErrBadRequest)
	}
	if len(e.Questions) == 0 {
		return fmt.Errorf("exam needs at least one question: %w", ErrBadRequest)
	}
	for i, q := range e.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d needs at least two options: %w", i, ErrBadRequest)
		}
		if q.Correct == nil || *q.Correct < 0 || *q.Correct >= len(q.Options) {
			return fmt.Errorf("question %d has no valid correct option: %w", i, ErrBadRequest)
		}
	}
	return nil
}

// AssignedToStudent reports whether studentID may see the exam. An empty list means everyone.
func (e *Exam) AssignedToStudent(studentID string) bool {
	return len(e.AssignedTo) == 0 || slices.Contains(e.AssignedTo, studentID)
}

// WithoutAnswerKey returns a copy safe to show a student.
func (e Exam) WithoutAnswerKey() Exam {
	qs := make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		qs[i] = Question{Question: q.Question, Options: q.Options}
	}
	e.Questions = qs
	return e
}
