package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Answer is one chosen option. Unanswered questions are simply absent.
type Answer struct {
	QuestionIndex int `json:"questionIndex" dynamodbav:"question_index"`
	Answer        int `json:"answer" dynamodbav:"answer"`
}

// UnmarshalJSON accepts chosenOptionIndex as an alias for answer.
func (a *Answer) UnmarshalJSON(b []byte) error {
	var raw struct {
		QuestionIndex *int `json:"questionIndex"`
		Answer        *int `json:"answer"`
		Chosen        *int `json:"chosenOptionIndex"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.QuestionIndex == nil {
		return fmt.Errorf("answer is missing questionIndex")
	}
	a.QuestionIndex = *raw.QuestionIndex
	switch {
	case raw.Answer != nil:
		a.Answer = *raw.Answer
	case raw.Chosen != nil:
		a.Answer = *raw.Chosen
	default:
		return fmt.Errorf("answer for question %d has no option", a.QuestionIndex)
	}
	return nil
}

// Attempt is a student's single submission for an exam.
// PK: exam_id, SK: student_id; the key itself makes a second row impossible.
type Attempt struct {
	SubmissionID  string     `json:"id" dynamodbav:"submission_id"`
	ExamID        string     `json:"examId" dynamodbav:"exam_id"`
	StudentID     string     `json:"studentId" dynamodbav:"student_id"`
	Answers       []Answer   `json:"answers" dynamodbav:"answers"`
	SubmittedAt   time.Time  `json:"submittedAt" dynamodbav:"submitted_at"`
	AutoSubmitted bool       `json:"autoSubmitted" dynamodbav:"auto_submitted"`
	Grade         *float64   `json:"grade" dynamodbav:"grade"`
	Feedback      *string    `json:"feedback" dynamodbav:"feedback"`
	GradedAt      *time.Time `json:"gradedAt,omitempty" dynamodbav:"graded_at"`
}

type SubmitRequest struct {
	ExamID        string   `json:"examId" validate:"required"`
	Answers       []Answer `json:"answers"`
	AutoSubmitted bool     `json:"autoSubmitted"`
}

type GradeRequest struct {
	Grade    *float64 `json:"grade" validate:"required,gte=0,lte=100"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=2000"`
}

// StudentResult is a row of the student's own results.
type StudentResult struct {
	Attempt
	ExamTitle string `json:"examTitle"`
}

// ExamSubmission is a row of the per-exam listing shown to teachers.
type ExamSubmission struct {
	Attempt
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

// CheckAnswers validates answers against the exam's questions.
func (e *Exam) CheckAnswers(answers []Answer) error {
	seen := make(map[int]bool, len(answers))
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(e.Questions) {
			return fmt.Errorf("question %d does not exist: %w", a.QuestionIndex, ErrBadRequest)
		}
		if seen[a.QuestionIndex] {
			return fmt.Errorf("question %d answered twice: %w", a.QuestionIndex, ErrBadRequest)
		}
		seen[a.QuestionIndex] = true
		if a.Answer < 0 || a.Answer >= len(e.Questions[a.QuestionIndex].Options) {
			return fmt.Errorf("question %d has no option %d: %w", a.QuestionIndex, a.Answer, ErrBadRequest)
		}
	}
	return nil
}
