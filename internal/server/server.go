package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanoazi/line-todo-bot/internal/bot"
	"github.com/yanoazi/line-todo-bot/internal/line"
	"github.com/yanoazi/line-todo-bot/internal/middleware"
	"github.com/yanoazi/line-todo-bot/internal/model"
	"github.com/yanoazi/line-todo-bot/internal/store"
	"github.com/yanoazi/line-todo-bot/internal/task"
	ws "github.com/yanoazi/line-todo-bot/internal/websocket"
)

// Config carries the LINE channel credentials and the integration API
// settings.
type Config struct {
	ChannelSecret  string
	APIKey         string
	DefaultGroupID string
}

type Server struct {
	db          *sql.DB
	cfg         Config
	hub         *ws.Hub
	bot         *bot.Handler
	members     *store.MemberStore
	tasks       *store.TaskStore
	lineClient  *line.Client
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, lineClient *line.Client, cfg Config, logger *slog.Logger, botOpts ...bot.Option) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	memberStore := store.NewMemberStore(db)
	taskStore := store.NewTaskStore(db)

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		bot:         bot.New(memberStore, taskStore, hub, logger.With("component", "bot"), botOpts...),
		members:     memberStore,
		tasks:       taskStore,
		lineClient:  lineClient,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Bot returns the command handler, for tests that drive commands directly.
func (s *Server) Bot() *bot.Handler {
	return s.bot
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /callback", s.handleCallback)
	mux.HandleFunc("GET /health", s.healthHandler)

	apiLimit := middleware.RateLimit(s.rateLimiter, func(r *http.Request) string {
		return middleware.RealIP(r)
	}, 30, time.Minute)
	mux.Handle("GET /api/pending-tasks", apiLimit(http.HandlerFunc(s.apiPendingTasks)))
	mux.Handle("GET /api/members", apiLimit(http.HandlerFunc(s.apiMembers)))
	mux.Handle("POST /api/send-reminder", apiLimit(http.HandlerFunc(s.apiSendReminder)))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCallback receives LINE webhook deliveries. The signature is verified
// against the raw body before any parsing; each text message event runs
// through the bot and its reply is sent fire-and-forget, so a delivery
// failure never rolls back a committed mutation.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !line.ValidSignature(s.cfg.ChannelSecret, body, r.Header.Get("X-Line-Signature")) {
		s.logger.Warn("invalid webhook signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var hook line.Webhook
	if err := json.Unmarshal(body, &hook); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, event := range hook.Events {
		s.handleEvent(event)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleEvent(event line.Event) {
	if event.Type != "message" || event.Message.Type != "text" {
		return
	}

	var ctx bot.Context
	switch event.Source.Type {
	case "group":
		ctx = bot.Context{UserID: event.Source.UserID, GroupID: event.Source.GroupID}
	case "user":
		ctx = bot.Context{UserID: event.Source.UserID}
	default:
		// Rooms are not supported.
		return
	}

	res := s.bot.Handle(event.Message.Text, ctx)
	if !res.Handled || res.Text == "" {
		return
	}

	if err := s.lineClient.Reply(event.ReplyToken, res.Text); err != nil {
		s.logger.Error("reply message", "error", err)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	key := r.Header.Get("X-API-KEY")
	return s.cfg.APIKey != "" && key == s.cfg.APIKey
}

type pendingTaskRecord struct {
	ID        int64    `json:"id"`
	TaskID    string   `json:"task_id"`
	Members   []string `json:"members"`
	Content   string   `json:"content"`
	DueDate   *string  `json:"due_date"`
	DaysLeft  *int     `json:"days_left"`
	CreatedAt string   `json:"created_at"`
}

// apiPendingTasks returns the pending tasks of a group as structured records
// for external automation (scheduled reminders and reports).
func (s *Server) apiPendingTasks(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		groupID = s.cfg.DefaultGroupID
	}
	if groupID == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "target group is not configured"})
		return
	}

	tasks, err := s.tasks.ListPendingByGroup(groupID)
	if err != nil {
		s.logger.Error("list pending tasks", "group", groupID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch tasks"})
		return
	}

	now := time.Now()
	records := make([]pendingTaskRecord, 0, len(tasks))
	for i := range tasks {
		records = append(records, toPendingRecord(&tasks[i], now))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":    records,
		"count":    len(records),
		"group_id": groupID,
	})
}

func toPendingRecord(t *model.Task, now time.Time) pendingTaskRecord {
	rec := pendingTaskRecord{
		ID:        t.ID,
		TaskID:    fmt.Sprintf("T-%d", t.ID),
		Members:   t.AssigneeNames(),
		Content:   t.Content,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
	if t.DueDate != nil {
		due := t.DueDate.In(task.Location).Format("2006/01/02")
		days := task.DaysLeft(*t.DueDate, now)
		rec.DueDate = &due
		rec.DaysLeft = &days
	}
	return rec
}

type memberRecord struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	LineUserID *string `json:"line_user_id"`
	CreatedAt  string  `json:"created_at"`
}

// apiMembers returns the known members of a group, so external automation can
// address reminders by name.
func (s *Server) apiMembers(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		groupID = s.cfg.DefaultGroupID
	}
	if groupID == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "target group is not configured"})
		return
	}

	members, err := s.members.ListByGroup(groupID)
	if err != nil {
		s.logger.Error("list members", "group", groupID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch members"})
		return
	}

	records := make([]memberRecord, 0, len(members))
	for _, m := range members {
		records = append(records, memberRecord{
			ID:         m.ID,
			Name:       m.Name,
			LineUserID: m.LineUserID,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"members":  records,
		"count":    len(records),
		"group_id": groupID,
	})
}

// apiSendReminder pushes a text message to the configured group on behalf of
// external automation.
func (s *Server) apiSendReminder(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if s.cfg.DefaultGroupID == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "target group is not configured"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing 'message' in request body"})
		return
	}

	if err := s.lineClient.Push(s.cfg.DefaultGroupID, req.Message); err != nil {
		s.logger.Error("push reminder", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to send reminder"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "reminder sent"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
