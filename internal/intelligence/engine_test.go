package intelligence

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/types"
)

type fakeClient struct {
	response string
	err      error
}

func (f *fakeClient) Generate(context.Context, string, ...llm.Option) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) GenerateMessages(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return f.response, f.err
}

var fixedNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func newTestEngine(client llm.Client) *Engine {
	e := New(client, 0.7, 1000, log.New(io.Discard, "", 0))
	e.now = func() time.Time { return fixedNow }
	return e
}

func TestAnalyzeTaskModelPath(t *testing.T) {
	client := &fakeClient{response: `{
		"suggested_priority": "high",
		"estimated_duration_minutes": 90,
		"complexity": "high",
		"recommendations": ["Start with the outline", "Schedule a review"],
		"reasoning": "Tight deadline"
	}`}

	analysis := newTestEngine(client).AnalyzeTask(context.Background(), &types.Task{
		Title: "Write launch plan", Priority: types.PriorityMedium, Status: types.StatusTodo,
	})
	if analysis.SuggestedPriority != types.PriorityHigh {
		t.Errorf("suggested priority = %s, want high", analysis.SuggestedPriority)
	}
	if analysis.EstimatedDuration != 90 {
		t.Errorf("estimated duration = %d, want 90", analysis.EstimatedDuration)
	}
	if len(analysis.Recommendations) != 2 {
		t.Errorf("recommendations = %v", analysis.Recommendations)
	}
}

func TestAnalyzeTaskFallback(t *testing.T) {
	client := &fakeClient{err: llm.ErrProvider}
	engine := newTestEngine(client)

	tests := []struct {
		name string
		due  *time.Time
		want types.Priority
	}{
		{"due tomorrow", timePtr(fixedNow.Add(20 * time.Hour)), types.PriorityHigh},
		{"due next week", timePtr(fixedNow.AddDate(0, 0, 10)), types.PriorityLow},
		{"due in 3 days", timePtr(fixedNow.AddDate(0, 0, 3)), types.PriorityMedium},
		{"no due date", nil, types.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := engine.AnalyzeTask(context.Background(), &types.Task{
				Title: "x", Priority: types.PriorityMedium, Status: types.StatusTodo, DueDate: tt.due,
			})
			if analysis.SuggestedPriority != tt.want {
				t.Errorf("suggested priority = %s, want %s", analysis.SuggestedPriority, tt.want)
			}
			if analysis.EstimatedDuration != 60 {
				t.Errorf("estimated duration = %d, want 60", analysis.EstimatedDuration)
			}
			if analysis.Complexity != "medium" {
				t.Errorf("complexity = %s, want medium", analysis.Complexity)
			}
			if analysis.Reasoning != "Based on due date analysis" {
				t.Errorf("reasoning = %q", analysis.Reasoning)
			}
		})
	}
}

func TestInsightsFallbackThresholds(t *testing.T) {
	engine := newTestEngine(&fakeClient{err: llm.ErrRateLimited})

	tests := []struct {
		rate      float64
		wantScore int
		wantRecs  int
	}{
		{85, 80, 1},
		{70, 80, 1},
		{55, 60, 1},
		{40, 60, 1},
		{10, 40, 2},
	}

	for _, tt := range tests {
		insights := engine.Insights(context.Background(), &types.Statistics{CompletionRate: tt.rate})
		if insights.ProductivityScore != tt.wantScore {
			t.Errorf("rate %.0f: score = %d, want %d", tt.rate, insights.ProductivityScore, tt.wantScore)
		}
		if len(insights.Recommendations) != tt.wantRecs {
			t.Errorf("rate %.0f: recommendations = %v", tt.rate, insights.Recommendations)
		}
		if insights.Trend != "stable" {
			t.Errorf("rate %.0f: trend = %q, want stable", tt.rate, insights.Trend)
		}
	}
}

func TestInsightsModelPath(t *testing.T) {
	client := &fakeClient{response: `{
		"productivity_score": 72,
		"insights": ["Steady progress", "Overdue pile is shrinking"],
		"recommendations": ["Timebox the big task"],
		"trend": "improving"
	}`}

	insights := newTestEngine(client).Insights(context.Background(), &types.Statistics{Total: 10, Completed: 7, CompletionRate: 70})
	if insights.ProductivityScore != 72 {
		t.Errorf("score = %d, want 72", insights.ProductivityScore)
	}
	if insights.Trend != "improving" {
		t.Errorf("trend = %q, want improving", insights.Trend)
	}
}

func TestSuggestBreakdownJSON(t *testing.T) {
	client := &fakeClient{response: "```json\n" + `["Research venues", "Draft guest list", "Send invitations"]` + "\n```"}

	subtasks := newTestEngine(client).SuggestBreakdown(context.Background(), "Plan party", "")
	if len(subtasks) != 3 || subtasks[0] != "Research venues" {
		t.Errorf("subtasks = %v", subtasks)
	}
}

func TestSuggestBreakdownProse(t *testing.T) {
	client := &fakeClient{response: `Here is a breakdown:
1. Research venues
2. Draft guest list
- Send invitations
* Confirm catering`}

	subtasks := newTestEngine(client).SuggestBreakdown(context.Background(), "Plan party", "")
	want := []string{"Research venues", "Draft guest list", "Send invitations", "Confirm catering"}
	if len(subtasks) != len(want) {
		t.Fatalf("subtasks = %v, want %v", subtasks, want)
	}
	for i := range want {
		if subtasks[i] != want[i] {
			t.Errorf("subtasks[%d] = %q, want %q", i, subtasks[i], want[i])
		}
	}
}

func TestSuggestBreakdownCaps(t *testing.T) {
	client := &fakeClient{response: `["a","b","c","d","e","f","g","h","i"]`}

	subtasks := newTestEngine(client).SuggestBreakdown(context.Background(), "Big task", "")
	if len(subtasks) != 7 {
		t.Errorf("got %d subtasks, want 7", len(subtasks))
	}
}

func TestSuggestBreakdownFallback(t *testing.T) {
	client := &fakeClient{err: llm.ErrProvider}

	subtasks := newTestEngine(client).SuggestBreakdown(context.Background(), "Migrate the database", "")
	want := []string{"Plan Migrate the database", "Execute Migrate the database", "Review Migrate the database"}
	if len(subtasks) != 3 {
		t.Fatalf("subtasks = %v", subtasks)
	}
	for i := range want {
		if subtasks[i] != want[i] {
			t.Errorf("subtasks[%d] = %q, want %q", i, subtasks[i], want[i])
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }
