package domain

import "time"

// Recipe is one generated answer stored for history and support.
type Recipe struct {
	ID        int64
	UserID    int64
	Prompt    string
	Response  string
	CostUnits int64
	CreatedAt time.Time
}
