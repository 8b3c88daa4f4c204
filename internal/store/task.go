package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yanoazi/line-todo-bot/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, content, status, group_id, owner_user_id, due_date, created_at, completed_at, completed_on_time`

// querier is satisfied by both *sql.DB and *sql.Tx, so reads can run inside
// or outside a transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Pending listings order by due date ascending with undated tasks last, ties
// broken by creation order.
const pendingOrder = ` ORDER BY due_date IS NULL, due_date ASC, created_at ASC, id ASC`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var groupID, ownerUserID sql.NullString
	var dueDate, completedAt sql.NullTime
	var onTime sql.NullBool

	err := scanner.Scan(
		&t.ID, &t.Content, &t.Status, &groupID, &ownerUserID,
		&dueDate, &t.CreatedAt, &completedAt, &onTime,
	)
	if err != nil {
		return nil, err
	}

	if groupID.Valid {
		t.Ownership = model.Ownership{Kind: model.OwnerGroup, GroupID: groupID.String}
	} else {
		t.Ownership = model.Ownership{Kind: model.OwnerPrivate, UserID: ownerUserID.String}
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if onTime.Valid {
		t.CompletedOnTime = &onTime.Bool
	}
	return &t, nil
}

// Create persists a pending task under the given ownership. For group
// ownership the task row and its assignment rows commit in one transaction so
// a partial failure never leaves an unassigned group task behind.
func (s *TaskStore) Create(own model.Ownership, content string, dueDate *time.Time) (*model.Task, error) {
	var groupID, ownerUserID sql.NullString
	switch own.Kind {
	case model.OwnerGroup:
		groupID = sql.NullString{String: own.GroupID, Valid: true}
	case model.OwnerPrivate:
		ownerUserID = sql.NullString{String: own.UserID, Valid: true}
	default:
		return nil, model.ErrNoOwner
	}
	var due sql.NullTime
	if dueDate != nil {
		due = sql.NullTime{Time: *dueDate, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO tasks (content, status, group_id, owner_user_id, due_date) VALUES (?, 'pending', ?, ?, ?)`,
		content, groupID, ownerUserID, due,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, memberID := range own.MemberIDs {
		if _, err := tx.Exec(
			`INSERT INTO task_assignments (task_id, member_id) VALUES (?, ?)`,
			id, memberID,
		); err != nil {
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
	}

	// Read the row back before committing so an error reply always means
	// nothing was persisted.
	t, err := s.getByID(tx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("read back task %d: row vanished", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	return s.getByID(s.db, id)
}

func (s *TaskStore) getByID(q querier, id int64) (*model.Task, error) {
	row := q.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := loadAssignees(q, t); err != nil {
		return nil, err
	}
	return t, nil
}

func loadAssignees(q querier, t *model.Task) error {
	if t.Ownership.Kind != model.OwnerGroup {
		return nil
	}
	rows, err := q.Query(
		`SELECT m.id, m.name, m.group_id, m.line_user_id, m.created_at
		 FROM members m
		 JOIN task_assignments ta ON ta.member_id = m.id
		 WHERE ta.task_id = ?
		 ORDER BY ta.rowid ASC`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("load assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return fmt.Errorf("scan assignee: %w", err)
		}
		t.Assignees = append(t.Assignees, *m)
		t.Ownership.MemberIDs = append(t.Ownership.MemberIDs, m.ID)
	}
	return rows.Err()
}

func (s *TaskStore) listTasks(query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range tasks {
		if err := loadAssignees(s.db, &tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *TaskStore) ListPendingByGroup(groupID string) ([]model.Task, error) {
	return s.listTasks(
		`SELECT `+taskCols+` FROM tasks WHERE group_id = ? AND status = 'pending'`+pendingOrder,
		groupID,
	)
}

func (s *TaskStore) ListPendingByMember(memberID int64) ([]model.Task, error) {
	return s.listTasks(
		`SELECT `+taskCols+` FROM tasks t
		 WHERE t.status = 'pending'
		   AND EXISTS (SELECT 1 FROM task_assignments ta WHERE ta.task_id = t.id AND ta.member_id = ?)`+pendingOrder,
		memberID,
	)
}

func (s *TaskStore) ListPendingByOwner(userID string) ([]model.Task, error) {
	return s.listTasks(
		`SELECT `+taskCols+` FROM tasks WHERE owner_user_id = ? AND status = 'pending'`+pendingOrder,
		userID,
	)
}

func (s *TaskStore) ListCompletedByOwner(userID string) ([]model.Task, error) {
	return s.listTasks(
		`SELECT `+taskCols+` FROM tasks WHERE owner_user_id = ? AND status = 'completed' ORDER BY completed_at DESC, id DESC`,
		userID,
	)
}

// Complete marks a pending task completed. The caller decides completedAt and
// the on-time classification; an already-completed task is left untouched.
func (s *TaskStore) Complete(id int64, completedAt time.Time, onTime bool) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = 'completed', completed_at = ?, completed_on_time = ? WHERE id = ? AND status = 'pending'`,
		completedAt.UTC(), onTime, id,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// UpdateContent replaces the content and, when replaceDue is set, the due
// date. Status and completion fields are never touched by an edit.
func (s *TaskStore) UpdateContent(id int64, content string, dueDate *time.Time, replaceDue bool) (*model.Task, error) {
	var err error
	if replaceDue {
		var due sql.NullTime
		if dueDate != nil {
			due = sql.NullTime{Time: *dueDate, Valid: true}
		}
		_, err = s.db.Exec(`UPDATE tasks SET content = ?, due_date = ? WHERE id = ?`, content, due, id)
	} else {
		_, err = s.db.Exec(`UPDATE tasks SET content = ? WHERE id = ?`, content, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a task; assignment rows cascade.
func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
