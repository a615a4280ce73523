package domain

// Session is what a successful OTP verification hands back: a bearer token and the user.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// LoginChallenge is returned by a password check. It never carries a token.
type LoginChallenge struct {
	Message    string `json:"message"`
	RequireOTP bool   `json:"requireOtp"`
	Email      string `json:"email"`
}
