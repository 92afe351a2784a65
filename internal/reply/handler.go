package reply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/momentum/internal/delivery"
	"github.com/abelbrown/momentum/internal/learn"
	"github.com/abelbrown/momentum/internal/logging"
	"github.com/abelbrown/momentum/internal/store"
)

// Redeliverer resends an existing alert with a fresh suggestion.
type Redeliverer interface {
	Redeliver(ctx context.Context, rec store.AlertRecord, prefix string) (string, error)
}

// Outcome describes what a reply did.
type Outcome struct {
	Handled bool   // false: unmatched text or nothing awaiting a response
	Kind    Kind   // the classified intent
	AlertID string // the alert acted on, when Handled
}

// Handler applies creator replies to the latest open alert.
type Handler struct {
	store      *store.Store
	classifier *Classifier
	learner    *learn.Learner
	redeliver  Redeliverer
	messenger  delivery.Messenger
}

func NewHandler(s *store.Store, c *Classifier, l *learn.Learner, r Redeliverer, m delivery.Messenger) *Handler {
	if c == nil {
		c = NewClassifier(Keywords{})
	}
	return &Handler{store: s, classifier: c, learner: l, redeliver: r, messenger: m}
}

// Process classifies the reply and applies it to the latest open alert.
//
// Classification happens before any store access: unmatched text returns
// Handled=false with no side effects at all, so a stray message can never
// transition an alert. A matched reply with no open alert is likewise a
// no-op.
func (h *Handler) Process(ctx context.Context, text string, now time.Time) (Outcome, error) {
	kind := h.classifier.Classify(text)
	if kind == KindUnmatched {
		logging.Debug("reply unmatched", "text", text)
		return Outcome{Kind: KindUnmatched}, nil
	}

	rec, err := h.store.LatestOpenAlert()
	if err != nil {
		return Outcome{}, fmt.Errorf("load open alert: %w", err)
	}
	if rec == nil {
		logging.Debug("reply matched but no alert is open", "kind", kind.String())
		h.confirm(ctx, nothingPending)
		return Outcome{Kind: kind}, nil
	}

	switch kind {
	case KindUsed:
		if won, err := h.transition(ctx, rec, store.ResponseUsed, now); err != nil || !won {
			return Outcome{Kind: kind}, err
		}
		if err := h.learner.Reinforce(rec.TopicText, true, now); err != nil {
			logging.Warn("reinforce failed", "alert", rec.ID, "error", err)
		}
		h.confirm(ctx, "🎉 Logged it. Weights updated, keep riding the wave.")

	case KindNotInterested:
		if won, err := h.transition(ctx, rec, store.ResponseNotInterested, now); err != nil || !won {
			return Outcome{Kind: kind}, err
		}
		if err := h.learner.Reinforce(rec.TopicText, false, now); err != nil {
			logging.Warn("reinforce failed", "alert", rec.ID, "error", err)
		}
		h.confirm(ctx, "Got it, fewer alerts like that one.")

	case KindRemindLater:
		if won, err := h.transition(ctx, rec, store.ResponseRemindLater, now); err != nil || !won {
			return Outcome{Kind: kind}, err
		}
		h.confirm(ctx, "👍 Will ping you again in about an hour if it still matters.")

	case KindMore:
		// Regenerate without touching the alert state. The creator is still
		// deciding; the response clock keeps running.
		if _, err := h.redeliver.Redeliver(ctx, *rec, "Here is another angle:"); err != nil {
			return Outcome{}, fmt.Errorf("redeliver: %w", err)
		}
	}

	logging.Info("reply handled", "alert", rec.ID, "kind", kind.String())
	return Outcome{Handled: true, Kind: kind, AlertID: rec.ID}, nil
}

// nothingPending is the reply sent when a recognized intent arrives with no
// alert awaiting a response.
const nothingPending = "Nothing pending right now. I will ping you when the next golden moment shows up."

// transition applies one state change and reports whether it won. Losing
// the compare-and-swap means a sweep resolved the record first; the creator
// gets the nothing-pending reply instead of a stale confirmation.
func (h *Handler) transition(ctx context.Context, rec *store.AlertRecord, resp store.Response, now time.Time) (bool, error) {
	err := h.store.SetResponse(rec.ID, resp, now)
	if errors.Is(err, store.ErrAlreadyResolved) {
		logging.Debug("reply lost transition race", "alert", rec.ID, "wanted", string(resp))
		h.confirm(ctx, nothingPending)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set response %s: %w", resp, err)
	}
	return true, nil
}

// confirm sends a short acknowledgement. Failures are logged and swallowed;
// the state transition already happened and must not roll back.
func (h *Handler) confirm(ctx context.Context, text string) {
	if h.messenger == nil {
		return
	}
	if _, err := h.messenger.Send(ctx, text); err != nil {
		logging.Warn("confirmation send failed", "error", err)
	}
}
