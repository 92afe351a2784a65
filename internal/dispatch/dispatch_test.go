package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/momentum/internal/delivery"
	"github.com/abelbrown/momentum/internal/gate"
	"github.com/abelbrown/momentum/internal/ideas"
	"github.com/abelbrown/momentum/internal/learn"
	"github.com/abelbrown/momentum/internal/score"
	"github.com/abelbrown/momentum/internal/store"
	"github.com/abelbrown/momentum/internal/trend"
)

// tick is a Monday 19:00 UTC, inside the default window.
var tick = time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC)

type mockRadar struct {
	candidates []trend.Candidate
	err        error
}

func (m *mockRadar) Candidates(ctx context.Context) ([]trend.Candidate, error) {
	return m.candidates, m.err
}

type mockMessenger struct {
	mu     sync.Mutex
	sent   []string
	err    error
	onSend func() // runs inside Send, before the message is counted
}

func (m *mockMessenger) Name() string { return "mock" }

func (m *mockMessenger) Send(ctx context.Context, body string) (string, error) {
	if m.onSend != nil {
		m.onSend()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, body)
	return "SM-test", nil
}

func (m *mockMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func gateConfig() gate.Config {
	return gate.Config{
		Location:     time.UTC,
		WindowHours:  []int{18, 19, 20, 21},
		WindowDays:   []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday},
		MaxPerDay:    2,
		MinGap:       3 * time.Hour,
		NoPostWindow: 20 * time.Hour,
	}
}

func goldenCandidate(id string) trend.Candidate {
	return trend.Candidate{
		SourceID:     id,
		Title:        "viral music challenge",
		Summary:      "a duet trend",
		BaseScore:    95,
		DiscoveredAt: tick.Add(-time.Hour),
	}
}

func newTestDispatcher(t *testing.T, radar *mockRadar, msgr *mockMessenger) (*Dispatcher, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	keeper := gate.New(s, gateConfig())
	scorer := score.NewScorer(nil, 6, 90)
	d := New(s, keeper, radar, scorer, ideas.StaticGenerator{}, msgr, learn.New(s))
	return d, s
}

var _ delivery.Messenger = (*mockMessenger)(nil)

func TestExecuteDispatchesGoldenMoment(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{goldenCandidate("c1")}}
	msgr := &mockMessenger{}
	d, s := newTestDispatcher(t, radar, msgr)

	res, err := d.Execute(context.Background(), tick, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Dispatched {
		t.Fatalf("expected dispatch, blocked with %q", res.Reason)
	}
	if res.MessageID != "SM-test" {
		t.Errorf("unexpected message id %q", res.MessageID)
	}
	if msgr.sentCount() != 1 {
		t.Fatalf("expected 1 message, got %d", msgr.sentCount())
	}

	recs, err := s.RecentAlerts(10)
	if err != nil {
		t.Fatalf("recent alerts: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(recs))
	}
	if recs[0].SourceID != "c1" || recs[0].Response != store.ResponseNone {
		t.Errorf("unexpected record: %+v", recs[0])
	}

	// Keywords from the alert got their alerted counters bumped
	w, err := s.GetTopicWeight("music")
	if err != nil {
		t.Fatalf("get weight: %v", err)
	}
	if w == nil || w.TimesAlerted != 1 {
		t.Errorf("expected alerted counter for music, got %+v", w)
	}
}

func TestExecuteDeliveryFailureLeavesNoRecord(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{goldenCandidate("c1")}}
	msgr := &mockMessenger{err: errors.New("twilio down")}
	d, s := newTestDispatcher(t, radar, msgr)

	if _, err := d.Execute(context.Background(), tick, false); err == nil {
		t.Fatal("expected error when delivery fails")
	}

	count, err := s.CountAlertsSince(tick.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no audit record after failed delivery, got %d", count)
	}

	// Candidate is still eligible once delivery recovers
	msgr.err = nil
	res, err := d.Execute(context.Background(), tick.Add(time.Minute), false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Dispatched {
		t.Fatalf("expected retry to dispatch, blocked with %q", res.Reason)
	}
}

func TestExecuteRespectsGate(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{goldenCandidate("c1")}}
	msgr := &mockMessenger{}
	d, _ := newTestDispatcher(t, radar, msgr)

	// Outside the window
	res, err := d.Execute(context.Background(), tick.Add(-10*time.Hour), false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Dispatched || res.Reason != gate.ReasonNotOptimalTime {
		t.Errorf("expected not_optimal_time skip, got %+v", res)
	}
	if msgr.sentCount() != 0 {
		t.Error("expected no message outside window")
	}

	// Force overrides the window
	res, err = d.Execute(context.Background(), tick.Add(-10*time.Hour), true)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Dispatched {
		t.Errorf("expected forced dispatch, blocked with %q", res.Reason)
	}
}

func TestExecuteAlreadySatisfied(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{goldenCandidate("c1")}}
	msgr := &mockMessenger{}
	d, s := newTestDispatcher(t, radar, msgr)

	if err := s.RecordPost("instagram", tick.Add(-2*time.Hour)); err != nil {
		t.Fatalf("record post: %v", err)
	}

	res, err := d.Execute(context.Background(), tick, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Dispatched || res.Reason != gate.ReasonAlreadySatisfied {
		t.Errorf("expected already_satisfied skip, got %+v", res)
	}
}

func TestExecuteNoQualifyingCandidates(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{
		{SourceID: "low", Title: "weather", BaseScore: 40, DiscoveredAt: tick.Add(-time.Hour)},
	}}
	msgr := &mockMessenger{}
	d, _ := newTestDispatcher(t, radar, msgr)

	res, err := d.Execute(context.Background(), tick, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Dispatched || res.Reason != ReasonNoCandidates {
		t.Errorf("expected no_qualifying_candidates skip, got %+v", res)
	}
}

func TestExecuteDedupsAlertedSource(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{goldenCandidate("c1")}}
	msgr := &mockMessenger{}
	d, _ := newTestDispatcher(t, radar, msgr)

	res, err := d.Execute(context.Background(), tick, false)
	if err != nil || !res.Dispatched {
		t.Fatalf("first execute: res=%+v err=%v", res, err)
	}

	// Same candidate still in the feed two hours on: force clears the gap
	// and the cap has room, so only the dedup set can stop a repeat.
	res, err = d.Execute(context.Background(), tick.Add(2*time.Hour), true)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if res.Dispatched || res.Reason != ReasonNoCandidates {
		t.Errorf("expected dedup skip, got %+v", res)
	}
	if msgr.sentCount() != 1 {
		t.Errorf("expected no second message, got %d sends", msgr.sentCount())
	}
}

func TestConcurrentExecutesRecordAtMostCap(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{goldenCandidate("c1"), goldenCandidate("c2")}}
	msgr := &mockMessenger{}
	d, s := newTestDispatcher(t, radar, msgr)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Execute(context.Background(), tick, true)
		}()
	}
	wg.Wait()

	// The daily cap is 2. Sends are not serialized, but the commit re-check
	// must keep the audit log, and with it every derived counter, at the cap.
	count, err := s.CountAlertsSince(tick.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if count > 2 {
		t.Errorf("daily cap violated: %d alerts recorded", count)
	}
}

func TestExecuteCommitRechecksCapAfterSend(t *testing.T) {
	radar := &mockRadar{candidates: []trend.Candidate{goldenCandidate("c1")}}
	msgr := &mockMessenger{}
	d, s := newTestDispatcher(t, radar, msgr)

	// While the message is in flight, other ticks fill the daily cap.
	msgr.onSend = func() {
		for _, id := range []string{"r1", "r2"} {
			err := s.InsertAlert(store.AlertRecord{
				ID: id, SourceID: "src-" + id, TopicText: "dance trend",
				WeightedScore: 92, DiscoveredAt: tick.Add(-time.Hour), DispatchedAt: tick,
			})
			if err != nil {
				t.Errorf("insert during send: %v", err)
			}
		}
	}

	res, err := d.Execute(context.Background(), tick, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Dispatched || res.Reason != gate.ReasonCooldownActive {
		t.Errorf("expected commit to refuse on a filled cap, got %+v", res)
	}

	// The delivered message stays unrecorded rather than breaching the cap
	count, err := s.CountAlertsSince(tick.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if count != 2 {
		t.Errorf("expected only the cap-filling alerts recorded, got %d", count)
	}
}

func TestRedeliver(t *testing.T) {
	radar := &mockRadar{}
	msgr := &mockMessenger{}
	d, s := newTestDispatcher(t, radar, msgr)

	rec := store.AlertRecord{
		ID:            "a1",
		SourceID:      "c1",
		TopicText:     "music challenge",
		WeightedScore: 95,
		DiscoveredAt:  tick.Add(-time.Hour),
		DispatchedAt:  tick,
	}
	if err := s.InsertAlert(rec); err != nil {
		t.Fatalf("insert alert: %v", err)
	}

	id, err := d.Redeliver(context.Background(), rec, "⏰ Reminder")
	if err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if id != "SM-test" {
		t.Errorf("unexpected message id %q", id)
	}
	if msgr.sentCount() != 1 {
		t.Fatalf("expected 1 message, got %d", msgr.sentCount())
	}

	// No new audit record
	recs, _ := s.RecentAlerts(10)
	if len(recs) != 1 {
		t.Errorf("expected 1 record after redeliver, got %d", len(recs))
	}
}
