package reply

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/momentum/internal/learn"
	"github.com/abelbrown/momentum/internal/store"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(Keywords{})

	tests := []struct {
		text string
		want Kind
	}{
		{"used it!", KindUsed},
		{"Posted the video", KindUsed},
		{"done", KindUsed},
		{"more please", KindMore},
		{"give me another", KindMore},
		{"not interested", KindNotInterested},
		{"nope", KindNotInterested},
		{"no more ideas please", KindNotInterested}, // rejection wins over "more"
		{"stop", KindNotInterested},
		{"remind me later", KindRemindLater},
		{"Later", KindRemindLater},
		{"what is this", KindUnmatched},
		{"", KindUnmatched},
		{"ok", KindUnmatched},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestClassifyCustomKeywords(t *testing.T) {
	c := NewClassifier(Keywords{Used: []string{"boom"}})

	if got := c.Classify("boom"); got != KindUsed {
		t.Errorf("expected custom keyword to match used, got %s", got)
	}
	// Unspecified sets keep the defaults
	if got := c.Classify("remind me"); got != KindRemindLater {
		t.Errorf("expected default remind keywords to survive, got %s", got)
	}
}

type mockRedeliverer struct {
	mu    sync.Mutex
	calls int
}

func (m *mockRedeliverer) Redeliver(ctx context.Context, rec store.AlertRecord, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return "SM-redeliver", nil
}

type mockMessenger struct {
	sent []string
}

func (m *mockMessenger) Name() string { return "mock" }
func (m *mockMessenger) Send(ctx context.Context, body string) (string, error) {
	m.sent = append(m.sent, body)
	return "SM-confirm", nil
}

var handlerTick = time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *store.Store, *mockRedeliverer, *mockMessenger) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	r := &mockRedeliverer{}
	m := &mockMessenger{}
	h := NewHandler(s, nil, learn.New(s), r, m)
	return h, s, r, m
}

func insertOpenAlert(t *testing.T, s *store.Store, id string) {
	t.Helper()
	err := s.InsertAlert(store.AlertRecord{
		ID:            id,
		SourceID:      "src-" + id,
		TopicText:     "music challenge",
		WeightedScore: 95,
		DiscoveredAt:  handlerTick.Add(-time.Hour),
		DispatchedAt:  handlerTick,
	})
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}
}

func TestProcessUsed(t *testing.T) {
	h, s, _, _ := newTestHandler(t)
	insertOpenAlert(t, s, "a1")

	out, err := h.Process(context.Background(), "used it, thanks!", handlerTick.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !out.Handled || out.Kind != KindUsed || out.AlertID != "a1" {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	recs, _ := s.RecentAlerts(1)
	if recs[0].Response != store.ResponseUsed {
		t.Errorf("expected response used, got %s", recs[0].Response)
	}
	if recs[0].RespondedAt.IsZero() {
		t.Error("expected responded_at to be stamped")
	}

	// Positive reinforcement on the alert's keywords
	w, err := s.GetTopicWeight("music")
	if err != nil {
		t.Fatalf("get weight: %v", err)
	}
	if w == nil || w.Weight <= 1.0 {
		t.Errorf("expected raised weight for music, got %+v", w)
	}
}

func TestProcessNotInterested(t *testing.T) {
	h, s, _, _ := newTestHandler(t)
	insertOpenAlert(t, s, "a1")

	out, err := h.Process(context.Background(), "no thanks", handlerTick.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !out.Handled || out.Kind != KindNotInterested {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	recs, _ := s.RecentAlerts(1)
	if recs[0].Response != store.ResponseNotInterested {
		t.Errorf("expected response not_interested, got %s", recs[0].Response)
	}

	w, _ := s.GetTopicWeight("music")
	if w == nil || w.Weight >= 1.0 {
		t.Errorf("expected lowered weight for music, got %+v", w)
	}
}

func TestProcessRemindLater(t *testing.T) {
	h, s, _, _ := newTestHandler(t)
	insertOpenAlert(t, s, "a1")

	respondedAt := handlerTick.Add(10 * time.Minute)
	out, err := h.Process(context.Background(), "remind me later", respondedAt)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !out.Handled || out.Kind != KindRemindLater {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	recs, _ := s.RecentAlerts(1)
	if recs[0].Response != store.ResponseRemindLater {
		t.Errorf("expected response remind_later, got %s", recs[0].Response)
	}

	// remind_later is intermediate: the alert stays open
	open, err := s.LatestOpenAlert()
	if err != nil {
		t.Fatalf("latest open: %v", err)
	}
	if open == nil || open.ID != "a1" {
		t.Error("expected alert to remain open after remind_later")
	}

	// No weight change on a deferral
	w, _ := s.GetTopicWeight("music")
	if w != nil {
		t.Errorf("expected no weight row for a deferral, got %+v", w)
	}
}

func TestProcessMoreRegeneratesWithoutTransition(t *testing.T) {
	h, s, r, _ := newTestHandler(t)
	insertOpenAlert(t, s, "a1")

	out, err := h.Process(context.Background(), "give me another", handlerTick.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !out.Handled || out.Kind != KindMore {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if r.calls != 1 {
		t.Errorf("expected 1 redelivery, got %d", r.calls)
	}

	recs, _ := s.RecentAlerts(1)
	if recs[0].Response != store.ResponseNone {
		t.Errorf("expected state untouched by more, got %s", recs[0].Response)
	}
}

func TestProcessUnmatchedHasNoSideEffects(t *testing.T) {
	h, s, r, m := newTestHandler(t)
	insertOpenAlert(t, s, "a1")

	out, err := h.Process(context.Background(), "how is the weather", handlerTick)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Handled {
		t.Fatal("expected unmatched text not to be handled")
	}
	if r.calls != 0 || len(m.sent) != 0 {
		t.Error("expected no messages for unmatched text")
	}

	recs, _ := s.RecentAlerts(1)
	if recs[0].Response != store.ResponseNone {
		t.Errorf("expected state untouched, got %s", recs[0].Response)
	}
}

func TestProcessMatchedButNoOpenAlert(t *testing.T) {
	h, _, _, m := newTestHandler(t)

	out, err := h.Process(context.Background(), "used it", handlerTick)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Handled {
		t.Fatal("expected no-op when nothing is awaiting a response")
	}
	if out.Kind != KindUsed {
		t.Errorf("expected classified kind to be reported, got %s", out.Kind)
	}
	// The creator still gets told nothing is pending
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "Nothing pending") {
		t.Errorf("expected a nothing-pending reply, got %v", m.sent)
	}
}

func TestTransitionLosesRaceToSweep(t *testing.T) {
	h, s, _, m := newTestHandler(t)
	insertOpenAlert(t, s, "a1")

	// The handler read the record while it was still open
	stale, err := s.LatestOpenAlert()
	if err != nil || stale == nil {
		t.Fatalf("latest open: rec=%v err=%v", stale, err)
	}

	// A sweep resolves it before the handler's write
	if err := s.SetResponse("a1", store.ResponseExpired, handlerTick); err != nil {
		t.Fatalf("expire: %v", err)
	}

	won, err := h.transition(context.Background(), stale, store.ResponseUsed, handlerTick.Add(time.Minute))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if won {
		t.Fatal("expected transition to lose against the resolved record")
	}

	recs, _ := s.RecentAlerts(1)
	if recs[0].Response != store.ResponseExpired {
		t.Errorf("expected expired to stick, got %s", recs[0].Response)
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "Nothing pending") {
		t.Errorf("expected a nothing-pending reply, got %v", m.sent)
	}
}

func TestProcessActsOnLatestOpenAlert(t *testing.T) {
	h, s, _, _ := newTestHandler(t)
	insertOpenAlert(t, s, "old")
	// Newer alert dispatched later
	err := s.InsertAlert(store.AlertRecord{
		ID: "new", SourceID: "src-new", TopicText: "dance trend",
		WeightedScore: 92, DiscoveredAt: handlerTick, DispatchedAt: handlerTick.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}

	out, err := h.Process(context.Background(), "used", handlerTick.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.AlertID != "new" {
		t.Errorf("expected reply to bind to newest open alert, got %s", out.AlertID)
	}
}
