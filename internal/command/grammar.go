// Package command turns one chat message into a classified command with
// typed arguments. Classification is an ordered list of (kind, pattern,
// extractor) rules; the literal command keywords keep the patterns mutually
// exclusive, so the first structural match wins.
package command

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	None       Kind = ""
	Add        Kind = "add"
	Complete   Kind = "complete"
	List       Kind = "list"
	Delete     Kind = "delete"
	Edit       Kind = "edit"
	Detail     Kind = "detail"
	BatchAdd   Kind = "batch_add"
	History    Kind = "history"
	DrawLots   Kind = "draw_lots"
	RandomPick Kind = "random_pick"
	Help       Kind = "help"
)

var ErrEmptyContent = errors.New("task content is empty")

// BatchLine is one task line of a batch-add. A line that fails to parse
// carries its error and the original text; it never aborts the batch.
type BatchLine struct {
	Raw     string
	Content string
	DueDate *time.Time
	Err     error
}

// Command is the parsed form of one chat message. Only the fields relevant
// to Kind are populated.
type Command struct {
	Kind     Kind
	TaskID   int64      // Complete, Delete, Detail, Edit
	Mentions []string   // Add, BatchAdd: leading @name block, deduplicated
	Content  string     // Add, Edit
	DueDate  *time.Time // Add, Edit
	HasDue   bool       // Edit: distinguishes "no token" from "clear" (no clear syntax exists)
	Lines    []BatchLine
	Filter   string   // List: optional @name
	Question string   // DrawLots
	Options  []string // RandomPick
}

type rule struct {
	kind    Kind
	re      *regexp.Regexp
	extract func(m []string) (Command, error)
}

var rules = []rule{
	{Add, regexp.MustCompile(`^#新增\s+([^\n]+)$`), extractAdd},
	{BatchAdd, regexp.MustCompile(`^#批量新增([^\n]*)\n((?s).+)$`), extractBatchAdd},
	{Complete, regexp.MustCompile(`^#完成\s+T-(\d+)\s*$`), extractTaskID},
	{List, regexp.MustCompile(`^#列表\s*(?:@(\S+))?\s*$`), extractList},
	{Delete, regexp.MustCompile(`^#刪除\s+T-(\d+)\s*$`), extractTaskID},
	{Edit, regexp.MustCompile(`^#修改\s+T-(\d+)\s+([^\n]+)$`), extractEdit},
	{Detail, regexp.MustCompile(`^#詳情\s+T-(\d+)\s*$`), extractTaskID},
	{History, regexp.MustCompile(`^#紀錄\s*$`), extractNoArgs},
	{DrawLots, regexp.MustCompile(`^#擲筊\s+([^\n]+)$`), extractDrawLots},
	{RandomPick, regexp.MustCompile(`^#抽籤(?:\s+([^\n]*))?$`), extractRandomPick},
	{Help, regexp.MustCompile(`^#幫助\s*$`), extractNoArgs},
}

// Parse classifies text into exactly one command. Unrecognized text yields
// Kind None with a nil error; a recognized command with malformed arguments
// (bad date token, empty content) yields its kind plus the argument error.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	for _, r := range rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cmd, err := r.extract(m)
		cmd.Kind = r.kind
		return cmd, err
	}
	return Command{Kind: None}, nil
}

func extractAdd(m []string) (Command, error) {
	mentions, rest := splitMentionBlock(m[1])
	content, due, err := splitTaskLine(rest)
	if err != nil {
		return Command{Mentions: mentions}, err
	}
	return Command{Mentions: mentions, Content: content, DueDate: due}, nil
}

func extractBatchAdd(m []string) (Command, error) {
	cmd := Command{Mentions: Mentions(m[1])}
	for _, raw := range strings.Split(m[2], "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := BatchLine{Raw: strings.TrimSpace(raw)}
		line.Content, line.DueDate, line.Err = splitTaskLine(raw)
		cmd.Lines = append(cmd.Lines, line)
	}
	return cmd, nil
}

func extractTaskID(m []string) (Command, error) {
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Command{}, err
	}
	return Command{TaskID: id}, nil
}

func extractList(m []string) (Command, error) {
	return Command{Filter: m[1]}, nil
}

func extractEdit(m []string) (Command, error) {
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Command{}, err
	}
	content, due, err := splitTaskLine(m[2])
	if err != nil {
		return Command{TaskID: id}, err
	}
	return Command{TaskID: id, Content: content, DueDate: due, HasDue: due != nil}, nil
}

func extractNoArgs(m []string) (Command, error) {
	return Command{}, nil
}

func extractDrawLots(m []string) (Command, error) {
	return Command{Question: strings.TrimSpace(m[1])}, nil
}

func extractRandomPick(m []string) (Command, error) {
	// Zero options is a user-facing error downstream, not a parse failure.
	return Command{Options: strings.Fields(m[1])}, nil
}
