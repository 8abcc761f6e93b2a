// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account. The password is never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique
	FirstName string
	LastName  string
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID uuid.UUID
}

// Project is a named container of clients and logs.
type Project struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedByID uuid.UUID
	CreatedAt   time.Time
	TeamCount   int // filled by listings only
}

// Client is a user's project-scoped membership record.
type Client struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ProjectID   uuid.UUID
	Role        Role
	FirstName   string
	LastName    string
	Email       string
	CreatedByID uuid.UUID
	CreatedAt   time.Time
}

// Log is one day's time entry for a client on a project.
type Log struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	ProjectID    uuid.UUID
	Date         time.Time  // start of day of StartTime, the slot anchor
	StartTime    time.Time
	EndTime      *time.Time // nil for open-ended entries
	Duration     int64      // milliseconds, EndTime - StartTime
	Title        string
	Content      string
	IsBillable   bool
	IsAbsent     bool
	Version      int64 // optimistic concurrency token (>= 1)
	ModifiedByID uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LogInput is a create-or-update intent for a log slot.
// A nil LogID means create; Version is the version the writer last observed.
type LogInput struct {
	LogID      *uuid.UUID
	ClientID   uuid.UUID
	ProjectID  uuid.UUID
	Title      string
	Content    string
	StartTime  time.Time
	EndTime    time.Time
	IsBillable bool
	IsAbsent   bool
	Version    int64
}

// LogWrite is a validated LogInput with derived fields, ready to persist.
type LogWrite struct {
	ID uuid.UUID // new id on create, LogInput.LogID on update
	LogInput
	Date         time.Time
	Duration     int64
	ModifiedByID uuid.UUID
}

// LogVersion reports the stored version after a successful write.
type LogVersion struct {
	ID      uuid.UUID
	Version int64
}

// MemberLogs is a client with its logs restricted to a statistics range.
type MemberLogs struct {
	Client Client
	Logs   []Log
}

// StatsFilter selects members and the log range for project statistics.
type StatsFilter struct {
	ProjectID uuid.UUID
	Start     time.Time
	End       time.Time
	Role      Role // empty = any
	Search    string
}

// Statistics is the fail-soft result of a statistics read.
// Degraded is set when Members was emptied by a backing-store failure.
type Statistics struct {
	Start    time.Time
	End      time.Time
	Members  []MemberLogs
	Degraded bool
}

// ClientMonth is a member's log page for a single month.
type ClientMonth struct {
	Client        Client
	Logs          []Log
	MonthHours    float64
	TotalDuration int64 // all-time non-absent milliseconds
}

// Notification is a directed message, optionally tied to a project invitation.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID  // recipient
	SentByID  uuid.UUID
	ProjectID *uuid.UUID
	Message   string
	Answer    *bool // nil while pending
	CheckedAt *time.Time
	CreatedAt time.Time
}

// Pending reports whether the notification still awaits an answer.
func (n Notification) Pending() bool { return n.Answer == nil }

// InvitationAnswer is the atomic state transition applied when an invitee
// answers. Member is nil on decline.
type InvitationAnswer struct {
	NotificationID uuid.UUID
	UserID         uuid.UUID // invitee, must be the recipient
	Accept         bool
	Message        string // replaces the invitation text
	Reply          Notification
	Member         *Client
}
