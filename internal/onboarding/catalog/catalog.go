// Package catalog defines the static, ordered vendor onboarding questionnaire:
// questions grouped into milestones, each with a field set, an input kind, an
// optional visibility predicate, and a validator. The catalog is immutable
// after load; declaration order defines traversal order.
package catalog

import (
	"vendry/internal/onboarding/draft"
)

// Milestone is a coarse progress bucket. The set and order are fixed.
type Milestone string

const (
	MilestoneListing             Milestone = "listing"
	MilestoneAccount             Milestone = "account"
	MilestoneVerificationPayment Milestone = "verification_payment"
	MilestoneSellerHub           Milestone = "seller_hub"
)

// Milestones lists every milestone in traversal order.
func Milestones() []Milestone {
	return []Milestone{
		MilestoneListing,
		MilestoneAccount,
		MilestoneVerificationPayment,
		MilestoneSellerHub,
	}
}

// InputKind is the closed enumeration of question widgets. Rendering is
// external; the engine only dispatches on the kind.
type InputKind string

const (
	KindIntro             InputKind = "intro"
	KindText              InputKind = "text"
	KindLongText          InputKind = "long_text"
	KindSingleSelect      InputKind = "single_select"
	KindMultiSelectSearch InputKind = "multi_select_search"
	KindCardChoice        InputKind = "card_choice"
	KindSingleFile        InputKind = "single_file"
	KindMultiFile         InputKind = "multi_file"
	KindComposite         InputKind = "composite"
	KindAddressMap        InputKind = "address_map"
	KindReview            InputKind = "review"
)

// Question is one onboarding step. Identity is ID ("milestone.slug"); a nil
// IsVisible means always visible; a nil Validate means always valid.
type Question struct {
	ID        string
	Milestone Milestone
	Fields    []draft.FieldKey
	Kind      InputKind
	Heading   string
	Subtitle  string
	IsVisible func(d draft.Draft) bool
	Validate  func(d draft.Draft) error
}

// Catalog is an ordered, immutable question list.
type Catalog struct {
	questions []Question
	positions map[string]int
}

// New builds a catalog from an ordered question list.
func New(questions []Question) *Catalog {
	positions := make(map[string]int, len(questions))
	for i, q := range questions {
		positions[q.ID] = i
	}
	return &Catalog{questions: questions, positions: positions}
}

// Questions returns the full ordered catalog.
func (c *Catalog) Questions() []Question {
	return c.questions
}

// Position returns a question's catalog position by ID.
func (c *Catalog) Position(id string) (int, bool) {
	pos, ok := c.positions[id]
	return pos, ok
}

// Visible filters the catalog against a draft, keeping a question iff its
// predicate is absent or true. Pure: evaluated fresh on every call so
// conditional questions appear and disappear as earlier answers change.
// Ties break by declaration order; there is no reordering by content.
func (c *Catalog) Visible(d draft.Draft) []Question {
	out := make([]Question, 0, len(c.questions))
	for _, q := range c.questions {
		if q.IsVisible == nil || q.IsVisible(d) {
			out = append(out, q)
		}
	}
	return out
}

// NearestVisibleAt returns the index (within Visible(d)) of the first visible
// question whose catalog position is at or after catalogPos. Used to avoid
// stranding the user on a question an earlier edit just hid: re-resolve to
// the nearest valid position. Falls back to the last visible question.
func (c *Catalog) NearestVisibleAt(d draft.Draft, catalogPos int) int {
	visible := c.Visible(d)
	for i, q := range visible {
		if c.positions[q.ID] >= catalogPos {
			return i
		}
	}
	return len(visible) - 1
}

// VisibleInMilestone returns the visible questions of one milestone.
func (c *Catalog) VisibleInMilestone(d draft.Draft, m Milestone) []Question {
	var out []Question
	for _, q := range c.Visible(d) {
		if q.Milestone == m {
			out = append(out, q)
		}
	}
	return out
}
