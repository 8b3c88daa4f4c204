package store

import (
	"testing"
	"time"

	"github.com/yanoazi/line-todo-bot/internal/database"
	"github.com/yanoazi/line-todo-bot/internal/model"
	"github.com/yanoazi/line-todo-bot/internal/task"
)

func setupTaskTestDB(t *testing.T) (*TaskStore, *MemberStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTaskStore(db), NewMemberStore(db)
}

func due(t *testing.T, year int, month time.Month, day int) *time.Time {
	t.Helper()
	d := time.Date(year, month, day, 0, 0, 0, 0, task.Location)
	return &d
}

func groupOwned(t *testing.T, groupID string, memberIDs ...int64) model.Ownership {
	t.Helper()
	own, err := model.GroupOwned(groupID, memberIDs)
	if err != nil {
		t.Fatalf("group ownership: %v", err)
	}
	return own
}

func privateOwned(t *testing.T, userID string) model.Ownership {
	t.Helper()
	own, err := model.PrivateOwned(userID)
	if err != nil {
		t.Fatalf("private ownership: %v", err)
	}
	return own
}

func mustMember(t *testing.T, ms *MemberStore, name, groupID string) *model.Member {
	t.Helper()
	m, err := ms.FindOrCreate(name, groupID)
	if err != nil {
		t.Fatalf("find or create %s: %v", name, err)
	}
	return m
}

func mustTask(t *testing.T, ts *TaskStore, own model.Ownership, content string, dueDate *time.Time) *model.Task {
	t.Helper()
	created, err := ts.Create(own, content, dueDate)
	if err != nil {
		t.Fatalf("create task %q: %v", content, err)
	}
	return created
}

func mustComplete(t *testing.T, ts *TaskStore, id int64, completedAt time.Time, onTime bool) {
	t.Helper()
	if err := ts.Complete(id, completedAt, onTime); err != nil {
		t.Fatalf("complete task %d: %v", id, err)
	}
}

func TestCreateGroupTask(t *testing.T) {
	ts, ms := setupTaskTestDB(t)

	alice := mustMember(t, ms, "Alice", "G1")
	bob := mustMember(t, ms, "Bob", "G1")

	created := mustTask(t, ts, groupOwned(t, "G1", alice.ID, bob.ID), "買午餐", due(t, 2025, time.June, 1))
	if created.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", created.Status)
	}
	if created.Ownership.Kind != model.OwnerGroup {
		t.Errorf("ownership kind = %q, want group", created.Ownership.Kind)
	}
	if len(created.Assignees) != 2 {
		t.Fatalf("expected 2 assignees, got %d", len(created.Assignees))
	}
	if created.Assignees[0].Name != "Alice" || created.Assignees[1].Name != "Bob" {
		t.Errorf("assignees = %v, want [Alice Bob]", created.AssigneeNames())
	}
	if created.DueDate == nil {
		t.Fatal("due date should be set")
	}
	if created.CompletedAt != nil || created.CompletedOnTime != nil {
		t.Error("new task should have no completion fields")
	}
}

func TestCreatePrivateTask(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	created := mustTask(t, ts, privateOwned(t, "U1"), "讀書", nil)
	if created.Ownership.Kind != model.OwnerPrivate {
		t.Errorf("ownership kind = %q, want private", created.Ownership.Kind)
	}
	if created.Ownership.UserID != "U1" {
		t.Errorf("owner user = %q, want U1", created.Ownership.UserID)
	}
	if len(created.Assignees) != 0 {
		t.Errorf("private task should have no assignees, got %d", len(created.Assignees))
	}
	if created.DueDate != nil {
		t.Errorf("due date should be nil, got %v", created.DueDate)
	}
}

func TestTimestampsSurviveReload(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	wantDue := due(t, 2025, time.June, 10)
	created := mustTask(t, ts, privateOwned(t, "U1"), "交報告", wantDue)

	completedAt := time.Date(2025, time.June, 9, 15, 30, 0, 0, task.Location)
	mustComplete(t, ts, created.ID, completedAt, true)

	// A fresh read must hand back the same instants that were written.
	got, err := ts.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.DueDate == nil || !got.DueDate.Equal(*wantDue) {
		t.Errorf("due date = %v, want %v", got.DueDate, wantDue)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completedAt) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, completedAt)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	got, err := ts.GetByID(9999)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent task")
	}
}

func TestPendingOrderUndatedLast(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	own := privateOwned(t, "U1")
	mustTask(t, ts, own, "no date", nil)
	mustTask(t, ts, own, "late", due(t, 2025, time.July, 1))
	mustTask(t, ts, own, "early", due(t, 2025, time.June, 1))

	tasks, err := ts.ListPendingByOwner("U1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	want := []string{"early", "late", "no date"}
	for i, w := range want {
		if tasks[i].Content != w {
			t.Errorf("tasks[%d].Content = %q, want %q", i, tasks[i].Content, w)
		}
	}
}

func TestPendingOrderTieBreaksByCreation(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	own := privateOwned(t, "U1")
	d := due(t, 2025, time.June, 1)
	first := mustTask(t, ts, own, "first", d)
	second := mustTask(t, ts, own, "second", d)

	tasks, err := ts.ListPendingByOwner("U1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != first.ID || tasks[1].ID != second.ID {
		t.Errorf("order = [%d %d], want [%d %d]", tasks[0].ID, tasks[1].ID, first.ID, second.ID)
	}
}

func TestListPendingByMember(t *testing.T) {
	ts, ms := setupTaskTestDB(t)

	alice := mustMember(t, ms, "Alice", "G1")
	bob := mustMember(t, ms, "Bob", "G1")

	mustTask(t, ts, groupOwned(t, "G1", alice.ID), "alice only", nil)
	mustTask(t, ts, groupOwned(t, "G1", alice.ID, bob.ID), "shared", nil)
	mustTask(t, ts, groupOwned(t, "G1", bob.ID), "bob only", nil)

	tasks, err := ts.ListPendingByMember(alice.ID)
	if err != nil {
		t.Fatalf("list by member: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks for alice, got %d", len(tasks))
	}
	for _, tk := range tasks {
		if tk.Content == "bob only" {
			t.Error("alice's list should not include bob's task")
		}
	}
}

func TestListPendingByGroupExcludesOtherGroups(t *testing.T) {
	ts, ms := setupTaskTestDB(t)

	a1 := mustMember(t, ms, "A", "G1")
	a2 := mustMember(t, ms, "A", "G2")
	mustTask(t, ts, groupOwned(t, "G1", a1.ID), "g1 task", nil)
	mustTask(t, ts, groupOwned(t, "G2", a2.ID), "g2 task", nil)

	tasks, err := ts.ListPendingByGroup("G1")
	if err != nil {
		t.Fatalf("list by group: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task in G1, got %d", len(tasks))
	}
	if tasks[0].Content != "g1 task" {
		t.Errorf("content = %q, want %q", tasks[0].Content, "g1 task")
	}
}

func TestCompleteTask(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	created := mustTask(t, ts, privateOwned(t, "U1"), "洗衣服", due(t, 2025, time.June, 10))
	completedAt := time.Date(2025, time.June, 9, 15, 0, 0, 0, task.Location)
	mustComplete(t, ts, created.ID, completedAt, true)

	got, err := ts.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at should be set")
	}
	if got.CompletedOnTime == nil || !*got.CompletedOnTime {
		t.Error("completed_on_time should be true")
	}

	pending, err := ts.ListPendingByOwner("U1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("completed task still listed as pending")
	}
}

func TestCompleteLeavesCompletedTaskAlone(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	created := mustTask(t, ts, privateOwned(t, "U1"), "task", nil)
	first := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	mustComplete(t, ts, created.ID, first, true)

	// Second complete must not move completed_at.
	mustComplete(t, ts, created.ID, first.Add(48*time.Hour), false)

	got, err := ts.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.CompletedAt.Equal(first) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, first)
	}
	if got.CompletedOnTime == nil || !*got.CompletedOnTime {
		t.Error("completed_on_time should still be true")
	}
}

func TestListCompletedByOwnerNewestFirst(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	own := privateOwned(t, "U1")
	a := mustTask(t, ts, own, "older", nil)
	b := mustTask(t, ts, own, "newer", nil)

	mustComplete(t, ts, a.ID, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), true)
	mustComplete(t, ts, b.ID, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), true)

	tasks, err := ts.ListCompletedByOwner("U1")
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Content != "newer" || tasks[1].Content != "older" {
		t.Errorf("order = [%q %q], want [newer older]", tasks[0].Content, tasks[1].Content)
	}
}

func TestUpdateContent(t *testing.T) {
	ts, _ := setupTaskTestDB(t)

	created := mustTask(t, ts, privateOwned(t, "U1"), "舊內容", due(t, 2025, time.June, 1))

	// Without a new due date the old one sticks.
	updated, err := ts.UpdateContent(created.ID, "新內容", nil, false)
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	if updated.Content != "新內容" {
		t.Errorf("content = %q, want %q", updated.Content, "新內容")
	}
	if updated.DueDate == nil {
		t.Error("due date should survive a content-only edit")
	}

	// With replaceDue the due date moves.
	newDue := due(t, 2025, time.July, 15)
	updated, err = ts.UpdateContent(created.ID, "新內容", newDue, true)
	if err != nil {
		t.Fatalf("update with due: %v", err)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(*newDue) {
		t.Errorf("due date = %v, want %v", updated.DueDate, newDue)
	}
}

func TestDeleteCascadesAssignments(t *testing.T) {
	ts, ms := setupTaskTestDB(t)

	alice := mustMember(t, ms, "Alice", "G1")
	created := mustTask(t, ts, groupOwned(t, "G1", alice.ID), "task", nil)

	if err := ts.Delete(created.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	got, err := ts.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get deleted task: %v", err)
	}
	if got != nil {
		t.Error("expected nil for deleted task")
	}

	// The member survives; only the assignment goes.
	tasks, err := ts.ListPendingByMember(alice.ID)
	if err != nil {
		t.Fatalf("list by member: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected 0 tasks after delete, got %d", len(tasks))
	}
	if m, err := ms.GetByID(alice.ID); err != nil || m == nil {
		t.Errorf("member should survive task deletion (member=%v, err=%v)", m, err)
	}
}
