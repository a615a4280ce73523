package domain

import "time"

// OTP purposes. Values match what is stored in the otps table.
const (
	PurposeVerification  = "VERIFICATION"
	PurposePasswordReset = "PASSWORD_RESET"
)

// OneTimeCode is a short-lived numeric code.
// PK: email, SK: purpose, so a new issue replaces the previous row for the pair.
// ValidUntil is the exact deadline in Unix milliseconds. ExpiresAt is the
// DynamoDB TTL in Unix seconds, rounded up so the row outlives the deadline.
type OneTimeCode struct {
	Email      string    `json:"email" dynamodbav:"email"`
	Purpose    string    `json:"purpose" dynamodbav:"purpose"`
	Code       string    `json:"-" dynamodbav:"code"`
	ValidUntil int64     `json:"valid_until" dynamodbav:"valid_until"`
	ExpiresAt  int64     `json:"expires_at" dynamodbav:"expires_at"`
	Used       bool      `json:"used" dynamodbav:"used"`
	IssuedAt   time.Time `json:"issued_at" dynamodbav:"issued_at"`
}

// SetDeadline sets both expiry fields from deadline.
func (c *OneTimeCode) SetDeadline(deadline time.Time) {
	c.ValidUntil = deadline.UnixMilli()
	c.ExpiresAt = deadline.Unix()
	if deadline.After(time.Unix(c.ExpiresAt, 0)) {
		c.ExpiresAt++
	}
}

// Usable reports whether the code can still be consumed at now.
func (c *OneTimeCode) Usable(now time.Time) bool {
	return !c.Used && now.UnixMilli() < c.ValidUntil
}
