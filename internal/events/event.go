package events

import "time"

const (
	TopicSlopReported   = "slop.reported"
	TopicUserRegistered = "user.registered"
	TopicUserVerified   = "user.verified"
)

// SlopReported is emitted after a batch of URLs was merged.
type SlopReported struct {
	Domains        []string  `json:"domains"`
	Paths          int       `json:"paths"`
	DomainsCreated int       `json:"domainsCreated"`
	PathsCreated   int       `json:"pathsCreated"`
	ReportsCreated int       `json:"reportsCreated"`
	ReportsUpdated int       `json:"reportsUpdated"`
	Reporter       string    `json:"reporter,omitempty"`
	ReportedAt     time.Time `json:"reportedAt"`
	ClientIP       string    `json:"clientIp"`
	UserAgent      string    `json:"userAgent"`
}

// UserRegistered is emitted when an account is created. The verification
// token is what the mailer sends to the user.
type UserRegistered struct {
	UserID            string    `json:"userId"`
	Email             string    `json:"email"`
	VerificationToken string    `json:"verificationToken"`
	RegisteredAt      time.Time `json:"registeredAt"`
}

// UserVerified is emitted when an account's email was confirmed.
type UserVerified struct {
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verifiedAt"`
}
