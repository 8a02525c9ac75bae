package groups

import (
	"time"

	"github.com/agora-qa/agora/internal/users"
)

// Group is a community that owns questions and gates their visibility.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CoverURL    string    `json:"coverUrl"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Membership ties a user to a group with a group-scoped role.
type Membership struct {
	ID        int64            `json:"id"`
	GroupID   int64            `json:"groupId"`
	UserID    int64            `json:"userId"`
	RoleName  string           `json:"roleName"`
	CreatedAt time.Time        `json:"createdAt"`
	User      users.PublicUser `json:"user"`
}
