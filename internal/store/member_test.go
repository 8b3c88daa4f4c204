package store

import (
	"testing"

	"github.com/yanoazi/line-todo-bot/internal/database"
)

func setupMemberTestDB(t *testing.T) *MemberStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMemberStore(db)
}

func TestFindOrCreateNewMember(t *testing.T) {
	ms := setupMemberTestDB(t)

	m, err := ms.FindOrCreate("小明", "G1")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if m.Name != "小明" {
		t.Errorf("name = %q, want %q", m.Name, "小明")
	}
	if m.GroupID != "G1" {
		t.Errorf("group_id = %q, want %q", m.GroupID, "G1")
	}
	if m.LineUserID != nil {
		t.Errorf("line_user_id should be nil, got %v", *m.LineUserID)
	}
}

func TestFindOrCreateIsStable(t *testing.T) {
	ms := setupMemberTestDB(t)

	first, err := ms.FindOrCreate("小明", "G1")
	if err != nil {
		t.Fatalf("first find or create: %v", err)
	}
	second, err := ms.FindOrCreate("小明", "G1")
	if err != nil {
		t.Fatalf("second find or create: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("repeated find or create returned ids %d and %d, want same", first.ID, second.ID)
	}
}

func TestSameNameDifferentGroups(t *testing.T) {
	ms := setupMemberTestDB(t)

	a, err := ms.FindOrCreate("小明", "G1")
	if err != nil {
		t.Fatalf("create in G1: %v", err)
	}
	b, err := ms.FindOrCreate("小明", "G2")
	if err != nil {
		t.Fatalf("create in G2: %v", err)
	}
	if a.ID == b.ID {
		t.Error("same name in different groups should be distinct members")
	}
}

func TestGetByNameAndGroupNotFound(t *testing.T) {
	ms := setupMemberTestDB(t)

	m, err := ms.GetByNameAndGroup("nobody", "G1")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if m != nil {
		t.Error("expected nil for nonexistent member")
	}
}

func TestListByGroup(t *testing.T) {
	ms := setupMemberTestDB(t)

	for _, seed := range []struct{ name, group string }{
		{"陳", "G1"}, {"林", "G1"}, {"王", "G2"},
	} {
		if _, err := ms.FindOrCreate(seed.name, seed.group); err != nil {
			t.Fatalf("seed member %s: %v", seed.name, err)
		}
	}

	members, err := ms.ListByGroup("G1")
	if err != nil {
		t.Fatalf("list by group: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members in G1, got %d", len(members))
	}
	for _, m := range members {
		if m.GroupID != "G1" {
			t.Errorf("member %q has group_id %q, want G1", m.Name, m.GroupID)
		}
	}
}
