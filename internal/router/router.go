// Package router routes validated layouts to human reviewers.
//
// Every submitted layout becomes a ReviewItem. Items that cannot pass are
// rejected outright, confident error-free items are approved automatically,
// and everything else is assigned to the least-loaded reviewer in a fixed
// pool. Items wait in PENDING while every reviewer is at the workload cap
// and are assigned as soon as capacity frees up.
//
//	PENDING → IN_REVIEW → APPROVED | REJECTED | REVISION_NEEDED
//	REVISION_NEEDED → COMPLETED (the resubmitted layout becomes a new item)
package router

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/floorplan/internal/apperr"
	"github.com/dshills/floorplan/internal/verdict"
)

// DefaultRetention is how long terminal items are kept before Cleanup purges them.
const DefaultRetention = 30 * 24 * time.Hour

// Rating bounds for reviewer feedback. A rating at or below RejectRating
// rejects the layout whatever the approval flag says.
const (
	MinRating    = 1
	MaxRating    = 5
	RejectRating = 2
)

// Submission is a validated layout handed to the router.
type Submission struct {
	LayoutID             string
	Result               verdict.Result
	GenerationConfidence float64
	IsFallback           bool
	RoomCount            int
	Budget               float64
}

// Feedback is a reviewer's decision on an item.
type Feedback struct {
	ReviewerID  string    `json:"reviewer_id"`
	Rating      int       `json:"rating"`
	Approved    bool      `json:"approved"`
	Comments    string    `json:"comments,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ReviewItem is one layout moving through review.
type ReviewItem struct {
	ID                   string         `json:"id"`
	LayoutID             string         `json:"layout_id"`
	ParentID             string         `json:"parent_id,omitempty"`
	Revision             int            `json:"revision"`
	Status               Status         `json:"status"`
	Priority             Priority       `json:"priority"`
	Score                int            `json:"score"`
	ReviewerID           string         `json:"reviewer_id,omitempty"`
	GenerationConfidence float64        `json:"generation_confidence"`
	IsFallback           bool           `json:"is_fallback"`
	AutoApproved         bool           `json:"auto_approved"`
	ValidationStatus     verdict.Status `json:"validation_status"`
	ErrorCount           int            `json:"error_count"`
	WarningCount         int            `json:"warning_count"`
	RoomCount            int            `json:"room_count"`
	Budget               float64        `json:"budget,omitempty"`
	SubmittedAt          time.Time      `json:"submitted_at"`
	Deadline             time.Time      `json:"deadline"`
	UpdatedAt            time.Time      `json:"updated_at"`
	FeedbackHistory      []Feedback     `json:"feedback_history,omitempty"`
}

// Overdue reports whether the item is still waiting on a reviewer past its deadline.
func (it ReviewItem) Overdue(now time.Time) bool {
	return (it.Status == StatusPending || it.Status == StatusInReview) && now.After(it.Deadline)
}

// LatestFeedback returns the most recent feedback, or nil before any.
func (it ReviewItem) LatestFeedback() *Feedback {
	if len(it.FeedbackHistory) == 0 {
		return nil
	}
	fb := it.FeedbackHistory[len(it.FeedbackHistory)-1]
	return &fb
}

func (it ReviewItem) clone() ReviewItem {
	if it.FeedbackHistory != nil {
		it.FeedbackHistory = append([]Feedback(nil), it.FeedbackHistory...)
	}
	return it
}

// Transition records one state change. From is empty when the item was created.
type Transition struct {
	Item ReviewItem
	From Status
	At   time.Time
}

// Journal durably records the transitions of one operation. Record runs
// under the router lock; an error undoes the operation and is returned to
// the caller.
type Journal interface {
	Record(ctx context.Context, trs []Transition) error
}

// Notifier receives state transitions after they are recorded. Failures are
// logged and never undo a transition.
type Notifier interface {
	Notify(ctx context.Context, t Transition) error
}

// Router owns the review queue. All item mutations happen under mu, so
// reviewer workload never exceeds the pool cap under concurrent calls.
type Router struct {
	Pool      *ReviewerPool
	Journal   Journal
	Notifier  Notifier
	Logger    *log.Logger
	Retention time.Duration
	Now       func() time.Time
	NewID     func() string

	mu    sync.Mutex
	items map[string]*ReviewItem
}

// New creates a router over pool. A nil pool has no reviewers, so every
// item that needs a human stays PENDING.
func New(pool *ReviewerPool, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	if pool == nil {
		pool, _ = NewPool(nil, DefaultMaxWorkload)
	}
	return &Router{
		Pool:      pool,
		Logger:    logger,
		Retention: DefaultRetention,
		Now:       time.Now,
		NewID:     uuid.NewString,
		items:     make(map[string]*ReviewItem),
	}
}

// Submit creates a review item for a validated layout and routes it.
func (r *Router) Submit(ctx context.Context, sub Submission) (ReviewItem, error) {
	if err := checkSubmission(sub); err != nil {
		return ReviewItem{}, err
	}
	r.mu.Lock()
	cp := r.checkpointLocked()
	it, trs := r.submitLocked(sub, nil)
	if err := r.commitLocked(ctx, cp, trs); err != nil {
		r.mu.Unlock()
		return ReviewItem{}, fmt.Errorf("submit layout %s: %w", sub.LayoutID, err)
	}
	r.mu.Unlock()

	r.notify(ctx, trs)
	r.logger().Info("review item submitted",
		"id", it.ID, "layout", it.LayoutID, "status", it.Status, "priority", it.Priority, "reviewer", it.ReviewerID)
	return it, nil
}

func checkSubmission(sub Submission) error {
	if sub.LayoutID == "" {
		return apperr.New(apperr.CodeInvalidRequest, "layout id is required")
	}
	if sub.GenerationConfidence < 0 || sub.GenerationConfidence > 1 {
		return apperr.New(apperr.CodeInvalidRequest, "generation confidence %v out of range [0,1]", sub.GenerationConfidence)
	}
	return nil
}

// submitLocked creates and routes an item. A revision inherits its parent's
// feedback history.
func (r *Router) submitLocked(sub Submission, parent *ReviewItem) (ReviewItem, []Transition) {
	var (
		parentID string
		revision int
		history  []Feedback
	)
	if parent != nil {
		parentID, revision = parent.ID, parent.Revision+1
		history = append(history, parent.FeedbackHistory...)
	}
	now := r.now()
	score := ComputeScore(sub)
	prio := PriorityFor(score)
	it := &ReviewItem{
		ID:                   r.newID(),
		LayoutID:             sub.LayoutID,
		ParentID:             parentID,
		Revision:             revision,
		Status:               StatusPending,
		Priority:             prio,
		Score:                score,
		GenerationConfidence: sub.GenerationConfidence,
		IsFallback:           sub.IsFallback,
		ValidationStatus:     sub.Result.Status,
		ErrorCount:           len(sub.Result.Errors),
		WarningCount:         len(sub.Result.Warnings),
		RoomCount:            sub.RoomCount,
		Budget:               sub.Budget,
		SubmittedAt:          now,
		Deadline:             now.Add(prio.Deadline()),
		UpdatedAt:            now,
		FeedbackHistory:      history,
	}
	if r.items == nil {
		r.items = make(map[string]*ReviewItem)
	}
	r.items[it.ID] = it
	trs := []Transition{{Item: it.clone(), At: now}}

	switch {
	case !sub.IsFallback && sub.Result.Status == verdict.StatusRejected:
		trs = append(trs, r.move(it, StatusRejected, now))
	case autoApprovable(sub):
		it.AutoApproved = true
		trs = append(trs, r.move(it, StatusApproved, now))
	default:
		if rv, ok := r.Pool.Acquire(); ok {
			it.ReviewerID = rv.ID
			trs = append(trs, r.move(it, StatusInReview, now))
		}
	}
	return it.clone(), trs
}

// SubmitFeedback records a reviewer's decision. Only the assigned reviewer
// may decide, and only while the item is IN_REVIEW. The reviewer's workload
// is released whatever the outcome, and waiting items are assigned.
func (r *Router) SubmitFeedback(ctx context.Context, itemID string, fb Feedback) (ReviewItem, error) {
	if fb.Rating < MinRating || fb.Rating > MaxRating {
		return ReviewItem{}, apperr.New(apperr.CodeInvalidRequest,
			"rating %d out of range %d-%d", fb.Rating, MinRating, MaxRating)
	}

	r.mu.Lock()
	it, ok := r.items[itemID]
	if !ok {
		r.mu.Unlock()
		return ReviewItem{}, apperr.New(apperr.CodeNotFound, "review item %s", itemID)
	}
	if it.Status != StatusInReview {
		r.mu.Unlock()
		return ReviewItem{}, apperr.New(apperr.CodeInvalidState, "review item %s is %s, not %s", itemID, it.Status, StatusInReview)
	}
	if fb.ReviewerID != it.ReviewerID {
		r.mu.Unlock()
		return ReviewItem{}, apperr.New(apperr.CodeForbidden, "review item %s is assigned to %s, not %s", itemID, it.ReviewerID, fb.ReviewerID)
	}

	cp := r.checkpointLocked()
	now := r.now()
	fb.SubmittedAt = now
	it.FeedbackHistory = append(it.FeedbackHistory, fb)

	var to Status
	switch {
	case fb.Rating <= RejectRating:
		to = StatusRejected
	case fb.Approved:
		to = StatusApproved
	default:
		to = StatusRevisionNeeded
	}
	trs := []Transition{r.move(it, to, now)}
	r.Pool.Release(fb.ReviewerID)
	assigned := r.assignPendingLocked(now)
	trs = append(trs, assigned...)
	out := it.clone()
	if err := r.commitLocked(ctx, cp, trs); err != nil {
		r.mu.Unlock()
		return ReviewItem{}, fmt.Errorf("record feedback on %s: %w", itemID, err)
	}
	r.mu.Unlock()

	r.notify(ctx, trs)
	r.logger().Info("feedback recorded",
		"id", itemID, "reviewer", fb.ReviewerID, "rating", fb.Rating, "status", out.Status, "assigned", len(assigned))
	return out, nil
}

// Resubmit closes a REVISION_NEEDED item and routes the revised layout as a
// new item linked to it.
func (r *Router) Resubmit(ctx context.Context, itemID string, sub Submission) (ReviewItem, error) {
	if err := checkSubmission(sub); err != nil {
		return ReviewItem{}, err
	}

	r.mu.Lock()
	old, ok := r.items[itemID]
	if !ok {
		r.mu.Unlock()
		return ReviewItem{}, apperr.New(apperr.CodeNotFound, "review item %s", itemID)
	}
	if old.Status != StatusRevisionNeeded {
		r.mu.Unlock()
		return ReviewItem{}, apperr.New(apperr.CodeInvalidState, "review item %s is %s, not %s", itemID, old.Status, StatusRevisionNeeded)
	}
	cp := r.checkpointLocked()
	trs := []Transition{r.move(old, StatusCompleted, r.now())}
	it, created := r.submitLocked(sub, old)
	trs = append(trs, created...)
	if err := r.commitLocked(ctx, cp, trs); err != nil {
		r.mu.Unlock()
		return ReviewItem{}, fmt.Errorf("resubmit %s: %w", itemID, err)
	}
	r.mu.Unlock()

	r.notify(ctx, trs)
	r.logger().Info("layout resubmitted", "previous", itemID, "id", it.ID, "revision", it.Revision, "status", it.Status)
	return it, nil
}

// AssignPending assigns waiting items, most urgent and oldest first, until
// every reviewer is at the cap. It returns the items it assigned.
func (r *Router) AssignPending(ctx context.Context) ([]ReviewItem, error) {
	r.mu.Lock()
	cp := r.checkpointLocked()
	trs := r.assignPendingLocked(r.now())
	if err := r.commitLocked(ctx, cp, trs); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("assign pending items: %w", err)
	}
	r.mu.Unlock()

	r.notify(ctx, trs)
	out := make([]ReviewItem, 0, len(trs))
	for _, tr := range trs {
		out = append(out, tr.Item)
	}
	return out, nil
}

func (r *Router) assignPendingLocked(now time.Time) []Transition {
	var pending []*ReviewItem
	for _, it := range r.items {
		if it.Status == StatusPending {
			pending = append(pending, it)
		}
	}
	sortQueue(pending)

	var trs []Transition
	for _, it := range pending {
		rv, ok := r.Pool.Acquire()
		if !ok {
			break
		}
		it.ReviewerID = rv.ID
		trs = append(trs, r.move(it, StatusInReview, now))
	}
	return trs
}

// Cleanup purges terminal items whose last transition is older than the
// retention window and returns their ids in sorted order.
func (r *Router) Cleanup(ctx context.Context) []string {
	retention := r.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := r.now().Add(-retention)

	r.mu.Lock()
	var removed []string
	for id, it := range r.items {
		if it.Status.Terminal() && it.UpdatedAt.Before(cutoff) {
			delete(r.items, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	sort.Strings(removed)
	if len(removed) > 0 {
		r.logger().Info("purged review items", "count", len(removed), "retention", retention)
	}
	return removed
}

// Restore replaces the queue with previously persisted items and rebuilds
// reviewer workloads from the IN_REVIEW ones.
func (r *Router) Restore(items []ReviewItem) error {
	next := make(map[string]*ReviewItem, len(items))
	counts := make(map[string]int)
	for _, it := range items {
		if it.ID == "" {
			return apperr.New(apperr.CodeInvalidState, "review item with empty id")
		}
		if !it.Status.Valid() {
			return apperr.New(apperr.CodeInvalidState, "review item %s has unknown status %q", it.ID, it.Status)
		}
		if _, dup := next[it.ID]; dup {
			return apperr.New(apperr.CodeInvalidState, "duplicate review item %s", it.ID)
		}
		c := it.clone()
		next[it.ID] = &c
		if it.Status == StatusInReview {
			if !r.Pool.Has(it.ReviewerID) {
				r.logger().Warn("review item assigned to unknown reviewer", "id", it.ID, "reviewer", it.ReviewerID)
				continue
			}
			counts[it.ReviewerID]++
		}
	}

	r.mu.Lock()
	r.items = next
	r.Pool.reset(counts)
	r.mu.Unlock()
	return nil
}

// Get returns one item.
func (r *Router) Get(id string) (ReviewItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return ReviewItem{}, apperr.New(apperr.CodeNotFound, "review item %s", id)
	}
	return it.clone(), nil
}

// List returns items in queue order. An empty status lists every item.
func (r *Router) List(status Status) []ReviewItem {
	r.mu.Lock()
	var sel []*ReviewItem
	for _, it := range r.items {
		if status == "" || it.Status == status {
			sel = append(sel, it)
		}
	}
	sortQueue(sel)
	out := make([]ReviewItem, 0, len(sel))
	for _, it := range sel {
		out = append(out, it.clone())
	}
	r.mu.Unlock()
	return out
}

// sortQueue orders items by priority, then submission time, then id.
func sortQueue(items []*ReviewItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority.order() != b.Priority.order() {
			return a.Priority.order() < b.Priority.order()
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})
}

func (r *Router) move(it *ReviewItem, to Status, now time.Time) Transition {
	from := it.Status
	it.Status = to
	it.UpdatedAt = now
	return Transition{Item: it.clone(), From: from, At: now}
}

// checkpoint is the queue state before an operation, kept so a failed
// journal write can be undone. It is empty when no journal is set.
type checkpoint struct {
	items  map[string]*ReviewItem
	counts map[string]int
}

func (r *Router) checkpointLocked() checkpoint {
	if r.Journal == nil {
		return checkpoint{}
	}
	items := make(map[string]*ReviewItem, len(r.items))
	for id, it := range r.items {
		c := it.clone()
		items[id] = &c
	}
	return checkpoint{items: items, counts: r.Pool.counts()}
}

// commitLocked records trs in the journal and restores cp if that fails.
func (r *Router) commitLocked(ctx context.Context, cp checkpoint, trs []Transition) error {
	if r.Journal == nil || len(trs) == 0 {
		return nil
	}
	if err := r.Journal.Record(ctx, trs); err != nil {
		r.items = cp.items
		r.Pool.reset(cp.counts)
		r.logger().Debug("journal write failed, operation undone", "transitions", len(trs), "err", err)
		return err
	}
	return nil
}

func (r *Router) notify(ctx context.Context, trs []Transition) {
	for _, tr := range trs {
		r.logger().Debug("review transition", "id", tr.Item.ID, "from", tr.From, "to", tr.Item.Status)
		if r.Notifier == nil {
			continue
		}
		if err := r.Notifier.Notify(ctx, tr); err != nil {
			r.logger().Warn("notification failed", "id", tr.Item.ID, "to", tr.Item.Status, "err", err)
		}
	}
}

func (r *Router) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

func (r *Router) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Router) newID() string {
	if r.NewID == nil {
		return uuid.NewString()
	}
	return r.NewID()
}
