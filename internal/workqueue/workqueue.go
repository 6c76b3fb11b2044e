// Package workqueue implements the scheduler (spec component 4.G): a
// priority queue of work items ranked by a weighted sum of signals,
// with fingerprint dedup and role assignment consulting outcome
// affinity data.
package workqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/outcome"
)

// Status is the lifecycle state of a queued work item.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusInFlight  Status = "in_flight"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Item is one unit of schedulable work.
type Item struct {
	ID          string
	WorkType    string
	Fingerprint string
	DefaultRole string
	Signals     map[string]float64
	Priority    float64
	Status      Status
	CreatedAt   time.Time
	FailReason  string
}

// heapEntry tracks an item's position in the underlying heap so
// rescore/remove can splice it out directly instead of scanning.
type heapEntry struct {
	item  *Item
	index int
}

type priorityHeap []*heapEntry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority > h[j].item.Priority
	}
	return h[i].item.CreatedAt.Before(h[j].item.CreatedAt)
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *priorityHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is the scheduler's priority queue and item registry.
type Queue struct {
	mu          sync.Mutex
	clock       clock.Source
	weights     map[string]float64
	outcomes    *outcome.Store
	heap        priorityHeap
	byID        map[string]*heapEntry // queued items currently in the heap
	items       map[string]*Item      // every known item regardless of status
	fingerprint map[string]string     // fingerprint -> item id, live (non-terminal) only
}

// New creates a Queue. weights and an outcome.Store are shared with the
// learner so a re-tuned weight vector is visible on the next rescore.
func New(clk clock.Source, weights map[string]float64, outcomes *outcome.Store) *Queue {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &Queue{
		clock:       clk,
		weights:     w,
		outcomes:    outcomes,
		byID:        make(map[string]*heapEntry),
		items:       make(map[string]*Item),
		fingerprint: make(map[string]string),
	}
}

func (q *Queue) score(signals map[string]float64) float64 {
	var total float64
	for name, v := range signals {
		total += q.weights[name] * v
	}
	return total
}

// Enqueue inserts a new item, rejecting a duplicate fingerprint that is
// still live (not in a terminal state).
func (q *Queue) Enqueue(workType, fingerprint, defaultRole string, signals map[string]float64) (Item, *apperr.Error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if workType == "" {
		return Item{}, apperr.New(apperr.InvalidWorkType, "work type is required")
	}
	if fingerprint != "" {
		if existingID, ok := q.fingerprint[fingerprint]; ok {
			if existing, ok := q.items[existingID]; ok && !existing.Status.terminal() {
				return Item{}, apperr.New(apperr.DuplicateFingerprint, "fingerprint %q already live as %s", fingerprint, existingID)
			}
		}
	}

	it := &Item{
		ID:          q.clock.NewID("wi"),
		WorkType:    workType,
		Fingerprint: fingerprint,
		DefaultRole: defaultRole,
		Signals:     signals,
		Priority:    q.score(signals),
		Status:      StatusQueued,
		CreatedAt:   q.clock.Now(),
	}
	q.items[it.ID] = it
	if fingerprint != "" {
		q.fingerprint[fingerprint] = it.ID
	}
	entry := &heapEntry{item: it}
	heap.Push(&q.heap, entry)
	q.byID[it.ID] = entry
	return *it, nil
}

// Pop removes and returns the highest-priority queued item, marking it
// in_flight.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return Item{}, false
	}
	entry := heap.Pop(&q.heap).(*heapEntry)
	delete(q.byID, entry.item.ID)
	entry.item.Status = StatusInFlight
	return *entry.item, true
}

// Complete marks an in-flight item completed.
func (q *Queue) Complete(id string) *apperr.Error {
	return q.terminalize(id, StatusCompleted, "")
}

// Fail marks an in-flight item failed with a reason.
func (q *Queue) Fail(id, reason string) *apperr.Error {
	return q.terminalize(id, StatusFailed, reason)
}

// Cancel marks a queued or in-flight item cancelled, removing it from
// the heap if it was still queued.
func (q *Queue) Cancel(id string) *apperr.Error {
	return q.terminalize(id, StatusCancelled, "")
}

// terminalize moves an item to a terminal state. An item still sitting
// in the heap is removed so a later Pop can't resurrect it.
func (q *Queue) terminalize(id string, status Status, reason string) *apperr.Error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[id]
	if !ok {
		return apperr.NotFoundf("work_item", id)
	}
	if entry, ok := q.byID[id]; ok {
		heap.Remove(&q.heap, entry.index)
		delete(q.byID, id)
	}
	it.Status = status
	it.FailReason = reason
	return nil
}

// Rescore recomputes priority for every still-queued item against the
// current weight vector and reorders the heap. Idempotent: calling it
// twice in a row with unchanged weights produces the same ordering.
func (q *Queue) Rescore(weights map[string]float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if weights != nil {
		for k, v := range weights {
			q.weights[k] = v
		}
	}
	for _, entry := range q.byID {
		entry.item.Priority = q.score(entry.item.Signals)
	}
	heap.Init(&q.heap)
}

// Assign consults the outcome affinity table for item.WorkType; if the
// best role meets minSamples with rate >= 0.6, returns it, else the
// item's own default role.
func (q *Queue) Assign(item Item, minSamples int) (role string, fromAffinity bool) {
	if q.outcomes != nil {
		if best, ok := q.outcomes.BestRole(item.WorkType, minSamples); ok {
			return best, true
		}
	}
	return item.DefaultRole, false
}

// Get returns an item by id regardless of status.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Len returns the number of currently queued (not yet popped) items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Weights returns a snapshot of the current weight vector.
func (q *Queue) Weights() map[string]float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]float64, len(q.weights))
	for k, v := range q.weights {
		out[k] = v
	}
	return out
}
