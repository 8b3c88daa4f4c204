package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yanoazi/line-todo-bot/internal/command"
	"github.com/yanoazi/line-todo-bot/internal/model"
	"github.com/yanoazi/line-todo-bot/internal/task"
)

var (
	errNoAssignees       = errors.New("no assignees mentioned")
	errMembersUnresolved = errors.New("no mentioned member could be resolved")
)

const (
	msgInternalError          = "處理指令時發生內部錯誤，請稍後再試。"
	msgUnknownCommand         = "無法辨識的指令，輸入「#幫助」查看使用說明。"
	msgEmptyContent           = "任務內容不能為空。"
	msgNoAssignees            = "請至少指定一位負責人，例如：#新增 @小明 買晚餐"
	msgPrivateMentionsIgnored = "（私人待辦無需指定負責人，已忽略提及）"
	msgPrivateFilterIgnored   = "（私人待辦沒有負責人概念，已忽略篩選）"
	msgPartialMembers         = "⚠️ 以下成員無法建立，未加入任務：%s"
	msgTaskNotFound           = "找不到ID為 T-%d 的任務。"
	msgMemberNotFound         = "找不到成員：%s"
	msgNoPermission           = "你沒有權限操作任務 T-%d。"
	msgAlreadyCompleted       = "任務 T-%d 已經標記為完成。\n任務內容：%s"
	msgNothingPending         = "%s：目前沒有待辦任務。"
	msgHistoryPrivateOnly     = "「#紀錄」僅供私人對話使用，請與我一對一聊天查詢已完成紀錄。"
	msgNoHistory              = "還沒有已完成的任務紀錄。"
	msgDeleted                = "已刪除任務 T-%d：%s"
	msgBatchEmpty             = "批量新增沒有收到任何任務行。"
	msgDrawLots               = "❓ 問題: %s\n✨ 結果: %s"
	msgPickNoOptions          = "請提供至少一個抽籤選項！ (用空格分隔)"
	msgPickResult             = "從 [%s] %d 個選項中抽出：\n🎉 %s 🎉"

	titleGroupList   = "本群組待辦事項"
	titleMemberList  = "%s 的待辦事項"
	titlePrivateList = "我的待辦事項"
)

var drawLotsOutcomes = []string{
	"聖筊 👍 (同意)",
	"陰筊 👎 (不同意)",
	"笑筊 🤔 (重新問)",
}

const helpText = `📋 代辦事項機器人指令 📋

🔸 新增任務:
   #新增 @成員1 @成員2 任務內容 [YYYY/MM/DD]
   (群組中至少要提及一位負責人；私人對話不需要)
   例: #新增 @小明 買晚餐 2025/04/17

🔸 批量新增:
   #批量新增 @成員
   任務一 [YYYY/MM/DD]
   任務二
   (每行一個任務，失敗的行不影響其他行)

🔸 完成任務:
   #完成 T-任務ID

🔸 查看任務:
   #列表          (看全部待辦)
   #列表 @成員   (看指定成員待辦)
   #詳情 T-任務ID

🔸 修改 / 刪除:
   #修改 T-任務ID 新內容 [YYYY/MM/DD]
   (不輸入日期則維持原截止日期)
   #刪除 T-任務ID

🔸 完成紀錄 (限私人對話):
   #紀錄

🔸 其他功能:
   #擲筊 問題
   #抽籤 選項1 選項2 ...
   #幫助 (顯示本說明)`

func parseErrorText(err error) string {
	var badDate *command.BadDateError
	if errors.As(err, &badDate) {
		return fmt.Sprintf("日期格式不正確：%s（請使用 YYYY/MM/DD）", badDate.Token)
	}
	if errors.Is(err, command.ErrEmptyContent) {
		return msgEmptyContent
	}
	return msgInternalError
}

func ownershipErrorText(err error) string {
	switch {
	case errors.Is(err, errNoAssignees), errors.Is(err, model.ErrNoAssignees):
		return msgNoAssignees
	case errors.Is(err, errMembersUnresolved):
		return fmt.Sprintf("無法建立任何負責人（%s），任務未新增。", strings.TrimPrefix(err.Error(), errMembersUnresolved.Error()+": "))
	default:
		return msgInternalError
	}
}

func formatDate(t time.Time) string {
	return t.In(task.Location).Format("2006/01/02")
}

func dueLine(due *time.Time) string {
	if due == nil {
		return "無截止日期"
	}
	return "截止日期：" + formatDate(*due)
}

func ownerLine(t *model.Task) string {
	if t.Ownership.Kind == model.OwnerPrivate {
		return "我的待辦"
	}
	return strings.Join(t.AssigneeNames(), "、")
}

func formatAdded(t *model.Task) string {
	var b strings.Builder
	if t.Ownership.Kind == model.OwnerGroup {
		fmt.Fprintf(&b, "已為 %s 新增任務：%s\n", ownerLine(t), t.Content)
	} else {
		fmt.Fprintf(&b, "已新增私人任務：%s\n", t.Content)
	}
	fmt.Fprintf(&b, "任務ID：T-%d\n", t.ID)
	b.WriteString(dueLine(t.DueDate))
	return b.String()
}

func formatCompleted(t *model.Task, comp task.Completion) string {
	if t.Ownership.Kind == model.OwnerGroup {
		// Group replies do not surface on-time tracking; the flag is still
		// stored for history and integrations.
		return fmt.Sprintf("已將 %s 的任務 T-%d 標記為完成！\n任務內容：%s", ownerLine(t), t.ID, t.Content)
	}
	annotation := "⏰ 已逾期完成"
	if comp.OnTime {
		annotation = "✅ 準時完成"
	}
	return fmt.Sprintf("任務 T-%d 已完成！\n任務內容：%s\n%s", t.ID, t.Content, annotation)
}

func dueAnnotation(due *time.Time, now time.Time) string {
	status, days := task.ClassifyDue(due, now)
	switch status {
	case task.DueOverdue:
		return "⚠️ 已逾期"
	case task.DueToday:
		return "⚠️ 今天到期"
	case task.DueSoon:
		return fmt.Sprintf("⚠️ 即將到期 (%d天)", days)
	case task.DueLater:
		return fmt.Sprintf("還有 %d 天", days)
	}
	return ""
}

func formatTaskList(title string, tasks []model.Task, showAssignees bool, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s 📋\n", title)
	for i := range tasks {
		t := &tasks[i]
		fmt.Fprintf(&b, "\n【任務 T-%d】\n", t.ID)
		if showAssignees {
			fmt.Fprintf(&b, "👤 負責人: %s\n", ownerLine(t))
		}
		fmt.Fprintf(&b, "📝 內容: %s\n", t.Content)
		if t.DueDate != nil {
			fmt.Fprintf(&b, "📅 截止: %s %s\n", formatDate(*t.DueDate), dueAnnotation(t.DueDate, now))
		}
		fmt.Fprintf(&b, "✅ 輸入「#完成 T-%d」標記完成\n", t.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func historyTag(t *model.Task) string {
	switch {
	case t.DueDate == nil:
		return "📝 無截止日期"
	case t.CompletedOnTime != nil && *t.CompletedOnTime:
		return "✅ 準時"
	default:
		return "⏰ 逾期"
	}
}

func formatHistory(tasks []model.Task) string {
	var onTime, late, noDue int
	var b strings.Builder
	b.WriteString("📜 已完成紀錄 📜\n")
	for i := range tasks {
		t := &tasks[i]
		tag := historyTag(t)
		switch {
		case t.DueDate == nil:
			noDue++
		case t.CompletedOnTime != nil && *t.CompletedOnTime:
			onTime++
		default:
			late++
		}
		completed := ""
		if t.CompletedAt != nil {
			completed = fmt.Sprintf(" (%s)", formatDate(*t.CompletedAt))
		}
		fmt.Fprintf(&b, "\nT-%d %s %s%s", t.ID, t.Content, tag, completed)
	}
	fmt.Fprintf(&b, "\n\n統計：準時 %d ・ 逾期 %d ・ 無截止日期 %d", onTime, late, noDue)
	return b.String()
}

func formatEdited(t *model.Task) string {
	return fmt.Sprintf("已更新任務 T-%d\n📝 內容: %s\n%s", t.ID, t.Content, dueLine(t.DueDate))
}

func formatDetail(t *model.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "【任務 T-%d】\n", t.ID)
	fmt.Fprintf(&b, "👤 負責人: %s\n", ownerLine(t))
	fmt.Fprintf(&b, "📝 內容: %s\n", t.Content)

	if t.Status == model.StatusCompleted {
		annotation := "⏰ 已逾期完成"
		if t.CompletedOnTime == nil || *t.CompletedOnTime {
			annotation = "✅ 準時完成"
		}
		completed := ""
		if t.CompletedAt != nil {
			completed = " " + formatDate(*t.CompletedAt)
		}
		fmt.Fprintf(&b, "📌 狀態: 已完成%s %s\n", completed, annotation)
	} else if t.DueDate != nil {
		fmt.Fprintf(&b, "📌 狀態: 待辦 %s\n", dueAnnotation(t.DueDate, now))
	} else {
		b.WriteString("📌 狀態: 待辦\n")
	}

	fmt.Fprintf(&b, "📅 %s\n", dueLine(t.DueDate))
	fmt.Fprintf(&b, "🕒 建立於 %s", formatDate(t.CreatedAt))
	return b.String()
}

type batchFailure struct {
	raw    string
	reason string
}

func formatBatchResult(created []*model.Task, failures []batchFailure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "批量新增完成：成功 %d 筆，失敗 %d 筆", len(created), len(failures))
	for _, t := range created {
		fmt.Fprintf(&b, "\n✅ T-%d %s", t.ID, t.Content)
		if t.DueDate != nil {
			fmt.Fprintf(&b, "（截止 %s）", formatDate(*t.DueDate))
		}
	}
	for _, f := range failures {
		fmt.Fprintf(&b, "\n✗ %s（%s）", f.raw, f.reason)
	}
	return b.String()
}

func preview(content string) string {
	const max = 20
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
