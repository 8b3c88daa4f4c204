// Package bot implements one handler per command kind. Handlers validate
// arguments, resolve members, drive the task store, and produce the reply
// text; transport and rendering of rich cards stay outside this package.
package bot

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/yanoazi/line-todo-bot/internal/command"
	"github.com/yanoazi/line-todo-bot/internal/model"
	"github.com/yanoazi/line-todo-bot/internal/store"
	"github.com/yanoazi/line-todo-bot/internal/task"
	"github.com/yanoazi/line-todo-bot/internal/websocket"
)

// Context identifies the caller and the conversation a command arrived in.
// An empty GroupID means a private one-to-one chat.
type Context struct {
	UserID  string
	GroupID string
}

func (c Context) IsGroup() bool { return c.GroupID != "" }

// Result is what a handled command produces. Handled is false only for text
// that matched no command; Text is the reply content the transport renders.
type Result struct {
	Handled bool
	Text    string
}

func reply(text string) Result { return Result{Handled: true, Text: text} }

type Handler struct {
	members *store.MemberStore
	tasks   *store.TaskStore
	hub     *websocket.Hub
	now     func() time.Time
	pick    func(n int) int
	logger  *slog.Logger
}

type Option func(*Handler)

// WithClock injects the time source, for deterministic completion tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithPicker injects the random index source used by draw-lots and
// random-pick.
func WithPicker(pick func(n int) int) Option {
	return func(h *Handler) { h.pick = pick }
}

func New(members *store.MemberStore, tasks *store.TaskStore, hub *websocket.Hub, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		members: members,
		tasks:   tasks,
		hub:     hub,
		now:     time.Now,
		pick:    rand.IntN,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// Handle runs one chat message through the grammar and the matching command
// handler. Unrecognized text is silently unhandled in groups; in a private
// chat, text that looks like an attempted command gets a usage hint.
func (h *Handler) Handle(text string, ctx Context) Result {
	cmd, err := command.Parse(text)
	if err != nil {
		return reply(parseErrorText(err))
	}

	switch cmd.Kind {
	case command.None:
		if !ctx.IsGroup() && strings.HasPrefix(strings.TrimSpace(text), "#") {
			return reply(msgUnknownCommand)
		}
		return Result{Handled: false}
	case command.Add:
		return h.handleAdd(cmd, ctx)
	case command.Complete:
		return h.handleComplete(cmd, ctx)
	case command.List:
		return h.handleList(cmd, ctx)
	case command.Delete:
		return h.handleDelete(cmd, ctx)
	case command.Edit:
		return h.handleEdit(cmd, ctx)
	case command.Detail:
		return h.handleDetail(cmd, ctx)
	case command.BatchAdd:
		return h.handleBatchAdd(cmd, ctx)
	case command.History:
		return h.handleHistory(cmd, ctx)
	case command.DrawLots:
		return h.handleDrawLots(cmd)
	case command.RandomPick:
		return h.handleRandomPick(cmd)
	case command.Help:
		return reply(helpText)
	}
	return Result{Handled: false}
}

// resolveOwnership turns the mention block into an Ownership for the caller's
// context. For groups it find-or-creates each mentioned member; names that
// fail to resolve are returned as warnings unless none resolve at all. In a
// private chat mentions are ignored with a notice.
func (h *Handler) resolveOwnership(mentions []string, ctx Context) (model.Ownership, string, error) {
	if !ctx.IsGroup() {
		var notice string
		if len(mentions) > 0 {
			notice = msgPrivateMentionsIgnored
		}
		own, err := model.PrivateOwned(ctx.UserID)
		return own, notice, err
	}

	if len(mentions) == 0 {
		return model.Ownership{}, "", errNoAssignees
	}

	var memberIDs []int64
	var names, failed []string
	for _, name := range mentions {
		m, err := h.members.FindOrCreate(name, ctx.GroupID)
		if err != nil {
			h.logger.Error("resolve member", "name", name, "group", ctx.GroupID, "error", err)
			failed = append(failed, name)
			continue
		}
		memberIDs = append(memberIDs, m.ID)
		names = append(names, m.Name)
	}
	if len(memberIDs) == 0 {
		return model.Ownership{}, "", fmt.Errorf("%w: %s", errMembersUnresolved, strings.Join(failed, ", "))
	}

	own, err := model.GroupOwned(ctx.GroupID, memberIDs)
	if err != nil {
		return model.Ownership{}, "", err
	}
	var warning string
	if len(failed) > 0 {
		warning = fmt.Sprintf(msgPartialMembers, strings.Join(failed, ", "))
	}
	return own, warning, nil
}

func (h *Handler) handleAdd(cmd command.Command, ctx Context) Result {
	own, notice, err := h.resolveOwnership(cmd.Mentions, ctx)
	if err != nil {
		return reply(ownershipErrorText(err))
	}

	t, err := h.tasks.Create(own, cmd.Content, cmd.DueDate)
	if err != nil {
		h.logger.Error("create task", "error", err)
		return reply(msgInternalError)
	}
	h.broadcast(websocket.NewMessage("task", "created", t.ID, nil))

	return reply(joinNonEmpty(notice, formatAdded(t)))
}

func (h *Handler) handleComplete(cmd command.Command, ctx Context) Result {
	t, res := h.lookup(cmd.TaskID, ctx)
	if t == nil {
		return res
	}

	comp, ok := task.CompletePending(t, h.now())
	if !ok {
		// Idempotent: already completed is an informational success.
		return reply(fmt.Sprintf(msgAlreadyCompleted, t.ID, t.Content))
	}

	if err := h.tasks.Complete(t.ID, comp.CompletedAt, comp.OnTime); err != nil {
		h.logger.Error("complete task", "task_id", t.ID, "error", err)
		return reply(msgInternalError)
	}
	h.broadcast(websocket.NewMessage("task", "completed", t.ID, nil))

	return reply(formatCompleted(t, comp))
}

func (h *Handler) handleList(cmd command.Command, ctx Context) Result {
	var notice string
	var tasks []model.Task
	var title string
	var err error

	switch {
	case !ctx.IsGroup():
		// Private tasks have no assignee concept; a filter is accepted
		// syntactically but ignored.
		if cmd.Filter != "" {
			notice = msgPrivateFilterIgnored
		}
		title = titlePrivateList
		tasks, err = h.tasks.ListPendingByOwner(ctx.UserID)
	case cmd.Filter != "":
		member, merr := h.members.GetByNameAndGroup(cmd.Filter, ctx.GroupID)
		if merr != nil {
			h.logger.Error("lookup member", "name", cmd.Filter, "error", merr)
			return reply(msgInternalError)
		}
		if member == nil {
			return reply(fmt.Sprintf(msgMemberNotFound, cmd.Filter))
		}
		title = fmt.Sprintf(titleMemberList, member.Name)
		tasks, err = h.tasks.ListPendingByMember(member.ID)
	default:
		title = titleGroupList
		tasks, err = h.tasks.ListPendingByGroup(ctx.GroupID)
	}
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		return reply(msgInternalError)
	}

	if len(tasks) == 0 {
		return reply(joinNonEmpty(notice, fmt.Sprintf(msgNothingPending, title)))
	}
	return reply(joinNonEmpty(notice, formatTaskList(title, tasks, ctx.IsGroup(), h.now())))
}

func (h *Handler) handleHistory(cmd command.Command, ctx Context) Result {
	if ctx.IsGroup() {
		return reply(msgHistoryPrivateOnly)
	}

	tasks, err := h.tasks.ListCompletedByOwner(ctx.UserID)
	if err != nil {
		h.logger.Error("list history", "error", err)
		return reply(msgInternalError)
	}
	if len(tasks) == 0 {
		return reply(msgNoHistory)
	}
	return reply(formatHistory(tasks))
}

func (h *Handler) handleDelete(cmd command.Command, ctx Context) Result {
	t, res := h.lookup(cmd.TaskID, ctx)
	if t == nil {
		return res
	}

	if err := h.tasks.Delete(t.ID); err != nil {
		h.logger.Error("delete task", "task_id", t.ID, "error", err)
		return reply(msgInternalError)
	}
	h.broadcast(websocket.NewMessage("task", "deleted", t.ID, nil))

	return reply(fmt.Sprintf(msgDeleted, t.ID, preview(t.Content)))
}

func (h *Handler) handleEdit(cmd command.Command, ctx Context) Result {
	t, res := h.lookup(cmd.TaskID, ctx)
	if t == nil {
		return res
	}

	// Editing never touches status or completion fields; omitting the date
	// token leaves the stored due date unchanged.
	updated, err := h.tasks.UpdateContent(t.ID, cmd.Content, cmd.DueDate, cmd.HasDue)
	if err != nil {
		h.logger.Error("edit task", "task_id", t.ID, "error", err)
		return reply(msgInternalError)
	}
	h.broadcast(websocket.NewMessage("task", "updated", t.ID, nil))

	return reply(formatEdited(updated))
}

func (h *Handler) handleDetail(cmd command.Command, ctx Context) Result {
	t, res := h.lookup(cmd.TaskID, ctx)
	if t == nil {
		return res
	}
	return reply(formatDetail(t, h.now()))
}

func (h *Handler) handleBatchAdd(cmd command.Command, ctx Context) Result {
	own, notice, err := h.resolveOwnership(cmd.Mentions, ctx)
	if err != nil {
		return reply(ownershipErrorText(err))
	}

	var created []*model.Task
	var failures []batchFailure
	for _, line := range cmd.Lines {
		if line.Err != nil {
			failures = append(failures, batchFailure{raw: line.Raw, reason: parseErrorText(line.Err)})
			continue
		}
		t, err := h.tasks.Create(own, line.Content, line.DueDate)
		if err != nil {
			h.logger.Error("batch create task", "error", err)
			failures = append(failures, batchFailure{raw: line.Raw, reason: msgInternalError})
			continue
		}
		h.broadcast(websocket.NewMessage("task", "created", t.ID, nil))
		created = append(created, t)
	}

	if len(created) == 0 && len(failures) == 0 {
		return reply(msgBatchEmpty)
	}
	return reply(joinNonEmpty(notice, formatBatchResult(created, failures)))
}

func (h *Handler) handleDrawLots(cmd command.Command) Result {
	outcome := drawLotsOutcomes[h.pick(len(drawLotsOutcomes))]
	return reply(fmt.Sprintf(msgDrawLots, cmd.Question, outcome))
}

func (h *Handler) handleRandomPick(cmd command.Command) Result {
	if len(cmd.Options) == 0 {
		return reply(msgPickNoOptions)
	}
	// Duplicates are kept as given: "A A B" draws from three options.
	chosen := cmd.Options[h.pick(len(cmd.Options))]
	return reply(fmt.Sprintf(msgPickResult, strings.Join(cmd.Options, ", "), len(cmd.Options), chosen))
}

// lookup fetches a task and checks the caller may act on it. Existence is
// checked before permission; permission failures stay generic so other
// owners' identities never leak. A non-nil task means both checks passed.
func (h *Handler) lookup(id int64, ctx Context) (*model.Task, Result) {
	t, err := h.tasks.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "task_id", id, "error", err)
		return nil, reply(msgInternalError)
	}
	if t == nil {
		return nil, reply(fmt.Sprintf(msgTaskNotFound, id))
	}
	if !canAccess(t, ctx) {
		return nil, reply(fmt.Sprintf(msgNoPermission, id))
	}
	return t, Result{}
}

func canAccess(t *model.Task, ctx Context) bool {
	switch t.Ownership.Kind {
	case model.OwnerGroup:
		return ctx.IsGroup() && t.Ownership.GroupID == ctx.GroupID
	case model.OwnerPrivate:
		return !ctx.IsGroup() && t.Ownership.UserID == ctx.UserID
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
