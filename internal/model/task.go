package model

import (
	"errors"
	"time"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

type OwnerKind string

const (
	// OwnerGroup means the task belongs to a LINE group and is assigned to
	// one or more members of that group.
	OwnerGroup OwnerKind = "group"
	// OwnerPrivate means the task belongs directly to one LINE user, with
	// no member assignment.
	OwnerPrivate OwnerKind = "private"
)

var (
	ErrNoAssignees = errors.New("group task needs at least one assignee")
	ErrNoOwner     = errors.New("ownership needs a group or a user")
)

// Ownership is the tagged union over the two ownership modes. Exactly one
// mode holds; the constructors enforce the mode invariants so a Task can
// never carry a half-formed ownership.
type Ownership struct {
	Kind      OwnerKind `json:"kind"`
	GroupID   string    `json:"group_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	MemberIDs []int64   `json:"member_ids,omitempty"`
}

// GroupOwned builds a group ownership with at least one assigned member.
func GroupOwned(groupID string, memberIDs []int64) (Ownership, error) {
	if groupID == "" {
		return Ownership{}, ErrNoOwner
	}
	if len(memberIDs) == 0 {
		return Ownership{}, ErrNoAssignees
	}
	return Ownership{Kind: OwnerGroup, GroupID: groupID, MemberIDs: memberIDs}, nil
}

// PrivateOwned builds a private ownership for one LINE user.
func PrivateOwned(userID string) (Ownership, error) {
	if userID == "" {
		return Ownership{}, ErrNoOwner
	}
	return Ownership{Kind: OwnerPrivate, UserID: userID}, nil
}

// Task is one unit of work. CompletedAt and CompletedOnTime are set exactly
// when Status is StatusCompleted. DueDate carries no time-of-day meaning
// beyond "end of that day".
type Task struct {
	ID              int64      `json:"id"`
	Content         string     `json:"content"`
	Status          TaskStatus `json:"status"`
	Ownership       Ownership  `json:"ownership"`
	Assignees       []Member   `json:"assignees,omitempty"`
	DueDate         *time.Time `json:"due_date"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CompletedOnTime *bool      `json:"completed_on_time"`
}

// AssigneeNames returns the display names of the assigned members, in
// assignment order.
func (t *Task) AssigneeNames() []string {
	names := make([]string, 0, len(t.Assignees))
	for _, m := range t.Assignees {
		names = append(names, m.Name)
	}
	return names
}
