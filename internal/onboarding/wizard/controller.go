// Package wizard sequences the question catalog against the current draft:
// it resolves the current question, validates forward navigation, computes
// per-milestone progress, and decides when onboarding is answerable-complete.
//
// All operations are synchronous computations over immutable draft snapshots.
// The only I/O is the explicit draft flush through the Flusher collaborator,
// which runs before a milestone transition and before completion so a reload
// mid-milestone never loses more than the in-flight question's edits.
package wizard

import (
	"context"

	"vendry/internal/onboarding/catalog"
	"vendry/internal/onboarding/draft"
	dErrors "vendry/pkg/domain-errors"
)

// Snapshot is what a flush persists: the full draft plus the resume position.
type Snapshot struct {
	Draft      draft.Draft
	Step       catalog.Milestone
	QuestionID string
}

// Flusher writes a snapshot to durable storage. Failures must leave the
// previous durable state intact; the controller surfaces them as retryable
// without advancing.
type Flusher interface {
	Flush(ctx context.Context, snap Snapshot) error
}

// Advance is the result of a Next transition. Exactly one of the three
// shapes holds: ValidationErr set (position unchanged), Completed true
// (terminal review passed), or Question set (moved forward).
type Advance struct {
	ValidationErr error
	Completed     bool
	Question      catalog.Question
}

// Controller walks the visible subset of the catalog. It tracks the current
// question by catalog position so visibility changes re-resolve cleanly, and
// keeps a per-milestone high-water mark so reported progress never regresses
// while a draft lives.
type Controller struct {
	catalog   *catalog.Catalog
	drafts    *draft.Store
	flusher   Flusher
	pos       int // catalog position of the current question
	completed bool
	highWater map[catalog.Milestone]float64
}

// New starts a controller at the first visible question.
func New(c *catalog.Catalog, drafts *draft.Store, flusher Flusher) *Controller {
	return &Controller{
		catalog:   c,
		drafts:    drafts,
		flusher:   flusher,
		highWater: make(map[catalog.Milestone]float64),
	}
}

// Resume rebuilds the position from a persisted step and question ID. An
// unknown or empty question ID lands on the first visible question of the
// step's milestone.
func (w *Controller) Resume(step catalog.Milestone, questionID string, completed bool) {
	w.completed = completed
	if pos, ok := w.catalog.Position(questionID); ok {
		w.pos = pos
		w.refreshHighWater()
		return
	}
	for _, q := range w.catalog.Visible(w.drafts.Snapshot()) {
		if q.Milestone == step {
			w.pos, _ = w.catalog.Position(q.ID)
			w.refreshHighWater()
			return
		}
	}
	w.pos = 0
	w.refreshHighWater()
}

// Drafts exposes the controller's draft store for field edits.
func (w *Controller) Drafts() *draft.Store { return w.drafts }

// SetFlusher swaps the flush target, used when an anonymous session gains a
// user to persist under.
func (w *Controller) SetFlusher(f Flusher) { w.flusher = f }

// FlushNow persists the current draft and position outside the usual
// milestone-transition points, e.g. right after an anonymous draft is
// adopted by a freshly authenticated user.
func (w *Controller) FlushNow(ctx context.Context) error {
	cur := w.Current()
	return w.flush(ctx, w.drafts.Snapshot(), cur.Milestone, cur.ID)
}

// Completed reports whether the terminal review question has been passed.
func (w *Controller) Completed() bool { return w.completed }

// Current resolves the question the user is on. If an earlier edit hid the
// question at the stored position, the nearest visible question at or after
// that catalog position is returned instead, so the user is never stranded on
// an invisible question.
func (w *Controller) Current() catalog.Question {
	d := w.drafts.Snapshot()
	visible := w.catalog.Visible(d)
	idx := w.catalog.NearestVisibleAt(d, w.pos)
	return visible[idx]
}

// CanGoBack is false only at the very first visible question.
func (w *Controller) CanGoBack() bool {
	if w.completed {
		return false
	}
	d := w.drafts.Snapshot()
	return w.catalog.NearestVisibleAt(d, w.pos) > 0
}

// Back moves one visible question backward. Backward navigation never
// validates. At the first question it is a no-op.
func (w *Controller) Back() catalog.Question {
	d := w.drafts.Snapshot()
	visible := w.catalog.Visible(d)
	idx := w.catalog.NearestVisibleAt(d, w.pos)
	if idx > 0 {
		idx--
	}
	w.pos, _ = w.catalog.Position(visible[idx].ID)
	return visible[idx]
}

// Next validates the current question and advances. Validation failure keeps
// the position unchanged and reports the message as a value. Visibility is
// recomputed after validation, so answers entered on this question can hide
// or reveal later ones before the landing position is chosen. The returned
// error is reserved for flush failures (retryable; position unchanged).
func (w *Controller) Next(ctx context.Context) (Advance, error) {
	if w.completed {
		return Advance{Completed: true}, nil
	}

	d := w.drafts.Snapshot()
	visible := w.catalog.Visible(d)
	idx := w.catalog.NearestVisibleAt(d, w.pos)
	cur := visible[idx]

	if cur.Validate != nil {
		if err := cur.Validate(d); err != nil {
			return Advance{ValidationErr: err}, nil
		}
	}

	if idx == len(visible)-1 {
		// Terminal review question. Flush the full draft before signaling
		// completion so the completion transaction reads durable state.
		if err := w.flush(ctx, d, cur.Milestone, cur.ID); err != nil {
			return Advance{}, err
		}
		w.completed = true
		w.bumpHighWater()
		return Advance{Completed: true}, nil
	}

	next := visible[idx+1]
	if next.Milestone != cur.Milestone {
		// Milestone transition: flush so a reload resumes at the new
		// milestone with every answered question intact.
		if err := w.flush(ctx, d, next.Milestone, next.ID); err != nil {
			return Advance{}, err
		}
	}

	w.pos, _ = w.catalog.Position(next.ID)
	w.bumpHighWater()
	return Advance{Question: next}, nil
}

// Progress reports per-milestone completion in [0,1]. It is pure over the
// draft and position except for the high-water clamp, which keeps progress
// monotonic non-decreasing until the draft is discarded.
func (w *Controller) Progress() map[catalog.Milestone]float64 {
	out := w.computeProgress()
	for m, v := range out {
		if hw := w.highWater[m]; hw > v {
			out[m] = hw
		}
	}
	return out
}

// ResetProgress discards the high-water marks along with the draft.
func (w *Controller) ResetProgress() {
	w.drafts.Reset()
	w.highWater = make(map[catalog.Milestone]float64)
	w.pos = 0
	w.completed = false
}

func (w *Controller) computeProgress() map[catalog.Milestone]float64 {
	d := w.drafts.Snapshot()
	visible := w.catalog.Visible(d)
	idx := w.catalog.NearestVisibleAt(d, w.pos)

	out := make(map[catalog.Milestone]float64, 4)
	totals := make(map[catalog.Milestone]int, 4)
	reached := make(map[catalog.Milestone]int, 4)
	for i, q := range visible {
		totals[q.Milestone]++
		if w.completed || i <= idx {
			reached[q.Milestone]++
		}
	}
	for _, m := range catalog.Milestones() {
		total := totals[m]
		if total == 0 {
			out[m] = 0
			continue
		}
		v := float64(reached[m]) / float64(total)
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[m] = v
	}
	return out
}

func (w *Controller) bumpHighWater() {
	for m, v := range w.computeProgress() {
		if v > w.highWater[m] {
			w.highWater[m] = v
		}
	}
}

func (w *Controller) refreshHighWater() {
	w.bumpHighWater()
}

func (w *Controller) flush(ctx context.Context, d draft.Draft, step catalog.Milestone, questionID string) error {
	if w.flusher == nil {
		return nil
	}
	err := w.flusher.Flush(ctx, Snapshot{Draft: d, Step: step, QuestionID: questionID})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeUnavailable, "saving your progress failed, try again", err)
	}
	return nil
}
