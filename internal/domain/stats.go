package domain

type StudentPerformance struct {
	StudentID      string          `json:"studentId"`
	StudentName    string          `json:"studentName"`
	AverageGrade   *float64        `json:"averageGrade"`
	TotalSubmitted int             `json:"totalSubmitted"`
	Submissions    []StudentResult `json:"submissions"`
}

type ExamStats struct {
	ExamID          string   `json:"examId"`
	Title           string   `json:"title"`
	AuthorName      string   `json:"authorName"`
	SubmissionCount int      `json:"totalSubmissions"`
	GradedCount     int      `json:"gradedSubmissions"`
	AverageGrade    *float64 `json:"averageGrade"`
}

// SiteStats are the headline counters on the admin dashboard.
type SiteStats struct {
	Students    int `json:"students"`
	Teachers    int `json:"teachers"`
	TotalAdmins int `json:"totalAdmins"`
	Materials   int `json:"materials"`
	Exams       int `json:"exams"`
}
