package model

import "time"

// Member is a named participant scoped to one LINE group. The (Name, GroupID)
// pair is unique; members are created implicitly on first mention and never
// deleted so that ownership of historical tasks stays resolvable.
type Member struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	GroupID    string    `json:"group_id"`
	LineUserID *string   `json:"line_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}
