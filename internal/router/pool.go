package router

import (
	"fmt"
	"sync"
)

// DefaultMaxWorkload is the per-reviewer cap when none is configured.
const DefaultMaxWorkload = 5

// Reviewer is a human who can take review items.
type Reviewer struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

// ReviewerWorkload is a point-in-time view of one reviewer's load.
type ReviewerWorkload struct {
	Reviewer
	Workload int `json:"workload"`
	Max      int `json:"max"`
}

// ReviewerPool tracks how many open items each reviewer holds. The workload
// counters are its only mutable state and are guarded by mu.
type ReviewerPool struct {
	mu          sync.Mutex
	reviewers   []Reviewer
	workload    map[string]int
	maxWorkload int
}

// NewPool creates a pool. Reviewer ids must be unique and non-empty.
func NewPool(reviewers []Reviewer, maxWorkload int) (*ReviewerPool, error) {
	if maxWorkload < 1 {
		maxWorkload = DefaultMaxWorkload
	}
	p := &ReviewerPool{
		reviewers:   append([]Reviewer(nil), reviewers...),
		workload:    make(map[string]int, len(reviewers)),
		maxWorkload: maxWorkload,
	}
	for i, r := range reviewers {
		if r.ID == "" {
			return nil, fmt.Errorf("reviewer %d: empty id", i)
		}
		if _, dup := p.workload[r.ID]; dup {
			return nil, fmt.Errorf("duplicate reviewer id %q", r.ID)
		}
		p.workload[r.ID] = 0
	}
	return p, nil
}

// Acquire picks the reviewer with the lowest workload strictly below the cap
// and increments it. Ties go to the reviewer listed first. It returns false
// when every reviewer is at the cap.
func (p *ReviewerPool) Acquire() (Reviewer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	best := -1
	for i, r := range p.reviewers {
		w := p.workload[r.ID]
		if w >= p.maxWorkload {
			continue
		}
		if best < 0 || w < p.workload[p.reviewers[best].ID] {
			best = i
		}
	}
	if best < 0 {
		return Reviewer{}, false
	}
	r := p.reviewers[best]
	p.workload[r.ID]++
	return r, true
}

// Release decrements a reviewer's workload, never below zero.
func (p *ReviewerPool) Release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workload[id] > 0 {
		p.workload[id]--
	}
}

// Has reports whether id belongs to the pool.
func (p *ReviewerPool) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.workload[id]
	return ok
}

// Workload returns the current workload of a reviewer.
func (p *ReviewerPool) Workload(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workload[id]
}

// Snapshot returns every reviewer with its workload in pool order.
func (p *ReviewerPool) Snapshot() []ReviewerWorkload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ReviewerWorkload, 0, len(p.reviewers))
	for _, r := range p.reviewers {
		out = append(out, ReviewerWorkload{Reviewer: r, Workload: p.workload[r.ID], Max: p.maxWorkload})
	}
	return out
}

// Max returns the per-reviewer workload cap.
func (p *ReviewerPool) Max() int { return p.maxWorkload }

func (p *ReviewerPool) counts() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.workload))
	for id, n := range p.workload {
		out[id] = n
	}
	return out
}

// reset sets every counter from counts. Unknown ids are ignored.
func (p *ReviewerPool) reset(counts map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.workload {
		p.workload[id] = 0
	}
	for id, n := range counts {
		if _, ok := p.workload[id]; ok {
			p.workload[id] = n
		}
	}
}
