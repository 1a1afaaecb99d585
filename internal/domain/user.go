package domain

import "time"

// User represents a person acting on tasks.
type User struct {
	ID        string
	Name      string
	Token     string
	IsActive  bool
	CreatedAt time.Time
}

// Project groups tasks under one approval policy.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ProjectMember binds a user to a project with a role.
type ProjectMember struct {
	ProjectID string
	UserID    string
	Role      Role
}
