package domain

import "time"

// User represents a bot user stored in the database. Users are created
// lazily on first contact and never deleted.
type User struct {
	ID              int64
	Username        string
	FirstName       string
	Balance         int64
	TotalRequests   int64
	TotalSpentMinor int64
	CreatedAt       time.Time
	LastSeenAt      time.Time
}
