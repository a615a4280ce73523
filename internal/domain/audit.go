package domain

import "time"

const (
	AuditLoginFailed          = "LOGIN_FAILED"
	AuditLoginSuccess         = "LOGIN_SUCCESS"
	AuditPasswordResetRequest = "PASSWORD_RESET_REQUEST"
	AuditPasswordResetSuccess = "PASSWORD_RESET_SUCCESS"
	AuditUserCreated          = "USER_CREATED"
	AuditUserRoleUpdated      = "USER_ROLE_UPDATED"
	AuditUserActivated        = "USER_ACTIVATED"
	AuditUserDeactivated      = "USER_DEACTIVATED"
	AuditUserDeleted          = "USER_DELETED"
	AuditSubmissionGraded     = "SUBMISSION_GRADED"
	AuditMaterialCreated      = "MATERIAL_CREATED"
)

// AuditLog is an append-only record of a security-relevant action.
type AuditLog struct {
	LogID     string            `json:"id" dynamodbav:"log_id"`
	ActorID   string            `json:"actorId" dynamodbav:"actor_id"`
	Action    string            `json:"action" dynamodbav:"action"`
	Details   map[string]string `json:"details,omitempty" dynamodbav:"details"`
	TargetID  string            `json:"targetId,omitempty" dynamodbav:"target_id"`
	IP        string            `json:"ip,omitempty" dynamodbav:"ip"`
	CreatedAt time.Time         `json:"createdAt" dynamodbav:"created_at"`
}

// AuditEntry is a log row joined with its actor for the admin history view.
type AuditEntry struct {
	AuditLog
	ActorName  string `json:"actorName,omitempty"`
	ActorEmail string `json:"actorEmail,omitempty"`
}
