package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/yanoazi/line-todo-bot/internal/task"
)

var (
	dateTokenRe = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	// trailingDateRe is deliberately looser than dateTokenRe: a trailing
	// token shaped like a date with the wrong separator must be rejected as
	// a bad date, not silently absorbed into the content.
	trailingDateRe = regexp.MustCompile(`(?:^|\s)(\d{4}[-./]\d{1,2}[-./]\d{1,2})\s*$`)
	mentionRe      = regexp.MustCompile(`@(\S+)`)
)

// BadDateError reports a date token that looked like a date but does not name
// a real calendar day, so the handler can echo it back.
type BadDateError struct {
	Token string
}

func (e *BadDateError) Error() string {
	return fmt.Sprintf("invalid date token %q", e.Token)
}

// ParseDate converts a YYYY/M/D token (1-2 digit month and day) into midnight
// of that day in the bot's time zone. Tokens that match the shape but not the
// calendar (2025/13/45) are rejected.
func ParseDate(token string) (time.Time, error) {
	m := dateTokenRe.FindStringSubmatch(token)
	if m == nil {
		return time.Time{}, &BadDateError{Token: token}
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, task.Location)
	// time.Date normalizes out-of-range components; a round trip that does
	// not land on the same Y/M/D means the token was not a real date.
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, &BadDateError{Token: token}
	}
	return d, nil
}

// Mentions returns the distinct @names in s, in first-seen order.
func Mentions(s string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range mentionRe.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// splitMentionBlock strips the leading run of @name tokens off s and returns
// the deduplicated names plus the remainder. An @ appearing later in the text
// is plain content, not a mention.
func splitMentionBlock(s string) (names []string, rest string) {
	rest = strings.TrimSpace(s)
	var block strings.Builder
	for strings.HasPrefix(rest, "@") {
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx == -1 {
			block.WriteString(rest + " ")
			rest = ""
			break
		}
		block.WriteString(rest[:idx] + " ")
		rest = strings.TrimSpace(rest[idx:])
	}
	return Mentions(block.String()), rest
}

// splitTaskLine separates free-text content from an optional trailing date
// token. The date must be the last whitespace-separated token; content must
// be non-empty after the date is stripped.
func splitTaskLine(s string) (content string, due *time.Time, err error) {
	s = strings.TrimSpace(s)
	if m := trailingDateRe.FindStringSubmatchIndex(s); m != nil {
		token := s[m[2]:m[3]]
		d, perr := ParseDate(token)
		if perr != nil {
			return "", nil, perr
		}
		due = &d
		s = strings.TrimSpace(s[:m[2]])
	}
	if s == "" {
		return "", nil, ErrEmptyContent
	}
	return s, due, nil
}
