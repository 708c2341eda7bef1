package model

import "time"

// User owns links to projects and productivity records.
type User struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	Projects               []string  `json:"projects"`
	ProductivityRecords    []string  `json:"productivityRecords"`
	WeeklyProductivityGoal int64     `json:"weeklyProductivityGoal"` // seconds
	CreatedAt              time.Time `json:"createdAt"`
}

// UserData is a User with its references expanded, as returned by the
// userData endpoint.
type UserData struct {
	User
	Projects            []PopulatedProject   `json:"projects"`
	ProductivityRecords []ProductivityRecord `json:"productivityRecords"`
}
