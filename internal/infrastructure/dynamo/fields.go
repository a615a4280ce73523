package dynamo

// Attribute names shared by key, condition and update expressions.
const (
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldPurpose      = "purpose"
	fieldCode         = "code"
	fieldUsed         = "used"
	fieldExpiresAt    = "expires_at"
	fieldValidUntil   = "valid_until"
	fieldVerified     = "verified"
	fieldActive       = "active"
	fieldRole         = "role"
	fieldPasswordHash = "password_hash"
	fieldUpdatedAt    = "updated_at"
	fieldExamID       = "exam_id"
	fieldStudentID    = "student_id"
	fieldSubmissionID = "submission_id"
	fieldAuthorID     = "author_id"
	fieldGrade        = "grade"
	fieldFeedback     = "feedback"
	fieldGradedAt     = "graded_at"
	fieldLogID        = "log_id"
	fieldActorID      = "actor_id"
	fieldMaterialID   = "material_id"
)
