// Package dispatch runs the golden moment decision cycle.
//
// One Execute call is one opportunity tick: gate, rank, generate, send,
// record. The audit record is written only after delivery is confirmed, so a
// crash mid-cycle can lose a record but can never double-charge the daily
// cap for a message that was not sent.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/momentum/internal/delivery"
	"github.com/abelbrown/momentum/internal/gate"
	"github.com/abelbrown/momentum/internal/ideas"
	"github.com/abelbrown/momentum/internal/learn"
	"github.com/abelbrown/momentum/internal/logging"
	"github.com/abelbrown/momentum/internal/score"
	"github.com/abelbrown/momentum/internal/store"
	"github.com/abelbrown/momentum/internal/trend"
)

// ReasonNoCandidates means the gate was open but nothing scored high enough.
const ReasonNoCandidates gate.Reason = "no_qualifying_candidates"

// Result describes the outcome of one dispatch cycle.
type Result struct {
	Dispatched bool
	Reason     gate.Reason // set when Dispatched is false
	AlertID    string
	MessageID  string
	Topic      string
	Score      float64
}

// CandidateSource yields the current trend candidates.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]trend.Candidate, error)
}

// Dispatcher wires the full alert pipeline together.
type Dispatcher struct {
	store     *store.Store
	keeper    *gate.Keeper
	radar     CandidateSource
	scorer    *score.Scorer
	generator ideas.Generator
	messenger delivery.Messenger
	learner   *learn.Learner

	// mu guards the gate check and the commit. It is released across the
	// generate and send calls; the commit re-checks the cap and dedup set so
	// a forced dispatch and a scheduled tick can never both record.
	mu sync.Mutex
}

func New(s *store.Store, k *gate.Keeper, radar CandidateSource, scorer *score.Scorer,
	gen ideas.Generator, msgr delivery.Messenger, l *learn.Learner) *Dispatcher {
	return &Dispatcher{
		store:     s,
		keeper:    k,
		radar:     radar,
		scorer:    scorer,
		generator: gen,
		messenger: msgr,
		learner:   l,
	}
}

// Execute runs one dispatch cycle at now. force skips the time window and
// minimum gap but never the daily cap or the already-satisfied check.
//
// The mutex is not held across the generate and send network calls. Instead
// the gate is checked twice: once up front, and again at commit time before
// the audit record is written. A tick that loses the commit re-check has
// already delivered its message; that is logged and left unrecorded, the
// same bounded degraded state as a crash between send and record.
func (d *Dispatcher) Execute(ctx context.Context, now time.Time, force bool) (Result, error) {
	if res, ok, err := d.precheck(now, force); !ok {
		return res, err
	}

	best, found, err := d.pickBest(ctx, now)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Reason: ReasonNoCandidates}, nil
	}

	suggestion, err := d.generator.Suggest(ctx, best.Title, best.Summary)
	if err != nil {
		return Result{}, fmt.Errorf("generate suggestion: %w", err)
	}

	msgID, err := d.messenger.Send(ctx, suggestion.Message(best.Title, best.WeightedScore))
	if err != nil {
		// Nothing was recorded; the candidate stays eligible next tick.
		return Result{}, fmt.Errorf("deliver alert: %w", err)
	}

	return d.commit(now, best, msgID)
}

// precheck holds the gate check under the lock. ok=false with a nil error
// means the gate refused; the Result carries the reason.
func (d *Dispatcher) precheck(now time.Time, force bool) (Result, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ok, reason, err := d.keeper.CanDispatch(now, force)
	if err != nil {
		return Result{}, false, fmt.Errorf("gate check: %w", err)
	}
	if !ok {
		logging.Debug("dispatch blocked", "reason", string(reason))
		return Result{Reason: reason}, false, nil
	}

	satisfied, err := d.keeper.AlreadySatisfied(now)
	if err != nil {
		return Result{}, false, fmt.Errorf("already-satisfied check: %w", err)
	}
	if satisfied {
		logging.Debug("dispatch blocked", "reason", string(gate.ReasonAlreadySatisfied))
		return Result{Reason: gate.ReasonAlreadySatisfied}, false, nil
	}
	return Result{}, true, nil
}

// commit writes the audit record under the lock, re-checking the cap and the
// dedup set first. Another tick may have recorded while the network calls
// ran; in that case the delivered message stays unrecorded and the cap is
// never double-charged.
func (d *Dispatcher) commit(now time.Time, best score.Scored, msgID string) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// force=true reduces CanDispatch to the cap check alone.
	ok, reason, err := d.keeper.CanDispatch(now, true)
	if err != nil {
		return Result{}, fmt.Errorf("commit gate check: %w", err)
	}
	if !ok {
		logging.Warn("alert delivered but cap filled during send, not recorded",
			"source", best.SourceID, "topic", best.Title)
		return Result{Reason: reason}, nil
	}

	alerted, err := d.store.AlertedSourceIDs(now.Add(-24 * time.Hour))
	if err != nil {
		return Result{}, fmt.Errorf("commit dedup check: %w", err)
	}
	if alerted[best.SourceID] {
		logging.Warn("alert delivered but source already recorded, not recorded again",
			"source", best.SourceID, "topic", best.Title)
		return Result{Reason: ReasonNoCandidates}, nil
	}

	rec := store.AlertRecord{
		ID:            uuid.New().String(),
		SourceID:      best.SourceID,
		TopicText:     best.Title,
		Summary:       best.Summary,
		WeightedScore: best.WeightedScore,
		DiscoveredAt:  best.DiscoveredAt,
		DispatchedAt:  now,
	}
	if err := d.store.InsertAlert(rec); err != nil {
		// Delivered but unrecorded. Log loudly; the freshness window bounds
		// how long this source could fire again.
		logging.Error("alert delivered but not recorded", "alert", rec.ID, "source", rec.SourceID, "error", err)
		return Result{}, fmt.Errorf("record alert: %w", err)
	}

	if err := d.learner.RecordAlerted(best.Title, now); err != nil {
		logging.Warn("failed to record alerted topics", "error", err)
	}

	logging.Info("golden moment dispatched",
		"alert", rec.ID, "topic", best.Title, "score", best.WeightedScore, "message", msgID)

	return Result{
		Dispatched: true,
		AlertID:    rec.ID,
		MessageID:  msgID,
		Topic:      best.Title,
		Score:      best.WeightedScore,
	}, nil
}

// Redeliver sends a reminder for an existing alert without creating a new
// audit record. Used by the remind-later sweep and reply regeneration.
func (d *Dispatcher) Redeliver(ctx context.Context, rec store.AlertRecord, prefix string) (string, error) {
	suggestion, err := d.generator.Suggest(ctx, rec.TopicText, rec.Summary)
	if err != nil {
		return "", fmt.Errorf("generate suggestion: %w", err)
	}

	body := suggestion.Message(rec.TopicText, rec.WeightedScore)
	if prefix != "" {
		body = prefix + "\n\n" + body
	}
	return d.messenger.Send(ctx, body)
}

func (d *Dispatcher) pickBest(ctx context.Context, now time.Time) (score.Scored, bool, error) {
	candidates, err := d.radar.Candidates(ctx)
	if err != nil {
		return score.Scored{}, false, fmt.Errorf("fetch candidates: %w", err)
	}

	weights, err := d.store.AllTopicWeights()
	if err != nil {
		return score.Scored{}, false, fmt.Errorf("load weights: %w", err)
	}

	alerted, err := d.store.AlertedSourceIDs(now.Add(-24 * time.Hour))
	if err != nil {
		return score.Scored{}, false, fmt.Errorf("load alerted sources: %w", err)
	}

	ranked := d.scorer.Rank(now, candidates, weights, alerted)
	if len(ranked) == 0 {
		logging.Debug("no qualifying candidates", "fetched", len(candidates))
		return score.Scored{}, false, nil
	}
	return ranked[0], true, nil
}
