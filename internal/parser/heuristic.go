// Package parser turns free-form task text into structured tasks.
//
// Two strategies exist: a deterministic rule-based parser that works
// offline, and a model-backed parser that falls back to the rules when
// the provider is unavailable or returns garbage.
package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/taskmaster/taskmaster/internal/types"
)

// TaskParser extracts structured task fields from natural language.
type TaskParser interface {
	Parse(ctx context.Context, input string, userCtx *types.UserContext) (*types.ParsedTask, error)
}

// HeuristicParser is the deterministic rule-based strategy. It never
// fails: any input produces a usable ParsedTask.
type HeuristicParser struct {
	when *when.Parser

	// now is stubbed in tests.
	now func() time.Time
}

// NewHeuristicParser builds a rule-based parser with English date rules.
func NewHeuristicParser() *HeuristicParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &HeuristicParser{when: w, now: time.Now}
}

// Parse applies the extraction rules to the input. The error is always
// nil; the signature matches TaskParser.
func (p *HeuristicParser) Parse(_ context.Context, input string, _ *types.UserContext) (*types.ParsedTask, error) {
	input = strings.TrimSpace(input)
	return &types.ParsedTask{
		Title:             extractTitle(input),
		Description:       input,
		DueDate:           p.extractDueDate(input),
		Priority:          keywordPriority(input),
		Tags:              keywordTags(input),
		EstimatedDuration: estimateDuration(input),
	}, nil
}

var (
	inUnitsRe  = regexp.MustCompile(`in (\d+) (hour|hours|day|days|week|weeks|month|months)`)
	durationRe = regexp.MustCompile(`(\d+)\s*(hours?|min(?:ute)?s?)`)
	timeWordRe = regexp.MustCompile(`(?i)\b(at|on|by|in)\s+\d+(:\d+)?\s*(am|pm|hours?|days?|weeks?)?\b`)
	dayWordRe  = regexp.MustCompile(`(?i)\b(tomorrow|today|tonight|yesterday)\b`)
)

var weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// extractDueDate resolves relative date expressions against the current
// time. Dates without an explicit time land at midnight local time.
func (p *HeuristicParser) extractDueDate(text string) *time.Time {
	lower := strings.ToLower(text)
	now := p.now()

	if strings.Contains(lower, "today") {
		d := midnight(now)
		return &d
	}
	if strings.Contains(lower, "tomorrow") {
		d := midnight(now.AddDate(0, 0, 1))
		return &d
	}

	// Weekday names roll forward to the next occurrence; a name that
	// matches today means next week.
	for i, day := range weekdays {
		if strings.Contains(lower, day) {
			// time.Weekday has Sunday=0; the rule table starts at Monday.
			current := (int(now.Weekday()) + 6) % 7
			ahead := (i - current + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			d := midnight(now.AddDate(0, 0, ahead))
			return &d
		}
	}

	if m := inUnitsRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch {
		case strings.HasPrefix(m[2], "hour"):
			d := now.Add(time.Duration(n) * time.Hour)
			return &d
		case strings.HasPrefix(m[2], "day"):
			d := midnight(now.AddDate(0, 0, n))
			return &d
		case strings.HasPrefix(m[2], "week"):
			d := midnight(now.AddDate(0, 0, n*7))
			return &d
		case strings.HasPrefix(m[2], "month"):
			// Approximate a month as 30 days.
			d := midnight(now.AddDate(0, 0, n*30))
			return &d
		}
	}

	// Formats the rules above miss (explicit dates, "next friday at 2pm")
	// go through the when library.
	if r, err := p.when.Parse(text, now); err == nil && r != nil {
		return &r.Time
	}

	return nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var highPriorityKeywords = []string{
	"urgent", "asap", "immediately", "now", "today", "deadline",
	"important", "critical", "emergency", "crucial", "priority",
}

var lowPriorityKeywords = []string{
	"later", "whenever", "eventually", "maybe", "someday",
	"when convenient", "at leisure",
}

// keywordPriority votes high against low urgency keywords; ties are medium.
func keywordPriority(text string) types.Priority {
	lower := strings.ToLower(text)

	var high, low int
	for _, kw := range highPriorityKeywords {
		if strings.Contains(lower, kw) {
			high++
		}
	}
	for _, kw := range lowPriorityKeywords {
		if strings.Contains(lower, kw) {
			low++
		}
	}

	switch {
	case high > low:
		return types.PriorityHigh
	case low > high:
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

// extractTitle strips time indicators and takes the leading words of the
// first sentence, capped at five.
func extractTitle(text string) string {
	cleaned := timeWordRe.ReplaceAllString(text, "")
	cleaned = dayWordRe.ReplaceAllString(cleaned, "")

	sentence := cleaned
	if i := strings.Index(sentence, "."); i >= 0 {
		sentence = sentence[:i]
	}
	sentence = strings.TrimSpace(sentence)

	words := strings.Fields(sentence)
	if len(words) > 3 {
		if len(words) > 5 {
			words = words[:5]
		}
		return strings.Join(words, " ")
	}
	return sentence
}

var tagCategories = []struct {
	tag      string
	keywords []string
}{
	{"work", []string{"meeting", "email", "project", "report", "presentation", "work", "office"}},
	{"communication", []string{"call", "email", "message", "contact", "phone", "text"}},
	{"errands", []string{"buy", "shop", "grocery", "store", "purchase", "errand"}},
	{"health", []string{"doctor", "appointment", "exercise", "workout", "health", "medical"}},
	{"personal", []string{"personal", "home", "family", "friend"}},
}

// keywordTags maps keyword hits onto tag categories, defaulting to
// "general" and capping at five tags.
func keywordTags(text string) []string {
	lower := strings.ToLower(text)

	var tags []string
	for _, cat := range tagCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, cat.tag)
				break
			}
		}
	}

	if len(tags) == 0 {
		tags = []string{"general"}
	}
	if len(tags) > 5 {
		tags = tags[:5]
	}
	return tags
}

var durationTable = []struct {
	minutes  int
	keywords []string
}{
	{60, []string{"meeting", "call", "interview"}},
	{15, []string{"email", "message", "reply"}},
	{120, []string{"report", "analysis", "research"}},
	{90, []string{"shopping", "errand"}},
	{60, []string{"exercise", "workout"}},
}

// estimateDuration reads an explicit "N hours"/"N minutes" mention, or
// falls back to a per-activity table. Nil means unknown.
func estimateDuration(text string) *int {
	lower := strings.ToLower(text)

	if m := durationRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "hour") {
			n *= 60
		}
		return &n
	}

	for _, row := range durationTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				d := row.minutes
				return &d
			}
		}
	}

	return nil
}
