package types

import "time"

// TeamMember is a {id, username} pair resolved against the users table at
// read time, so displayed usernames are always current.
type TeamMember struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Project is a student project that feedback can be recorded against.
// Membership lives in the project_members join table.
type Project struct {
	ID          int          `json:"id" db:"id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	TeamMembers []TeamMember `json:"team_members"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// HasMember reports whether the user is part of the project team.
func (p Project) HasMember(userID int) bool {
	for _, m := range p.TeamMembers {
		if m.ID == userID {
			return true
		}
	}
	return false
}
