package store

import (
	"database/sql"
	"fmt"

	"github.com/yanoazi/line-todo-bot/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, name, group_id, line_user_id, created_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	var lineUserID sql.NullString
	err := scanner.Scan(&m.ID, &m.Name, &m.GroupID, &lineUserID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lineUserID.Valid {
		m.LineUserID = &lineUserID.String
	}
	return &m, nil
}

func (s *MemberStore) GetByID(id int64) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) GetByNameAndGroup(name, groupID string) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE name = ? AND group_id = ?`, name, groupID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by name: %w", err)
	}
	return m, nil
}

// FindOrCreate returns the member named name in groupID, creating it on first
// reference. A concurrent insert losing the (name, group_id) uniqueness race
// falls back to reading the winner's row instead of surfacing an error.
func (s *MemberStore) FindOrCreate(name, groupID string) (*model.Member, error) {
	m, err := s.GetByNameAndGroup(name, groupID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}

	result, err := s.db.Exec(
		`INSERT INTO members (name, group_id) VALUES (?, ?)`,
		name, groupID,
	)
	if err != nil {
		// Likely a uniqueness race: someone created this member between
		// our lookup and insert. Re-fetch before giving up.
		if m, lookupErr := s.GetByNameAndGroup(name, groupID); lookupErr == nil && m != nil {
			return m, nil
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) ListByGroup(groupID string) ([]model.Member, error) {
	rows, err := s.db.Query(`SELECT `+memberCols+` FROM members WHERE group_id = ? ORDER BY name ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
