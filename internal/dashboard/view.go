// Package dashboard keeps the task list a user is currently looking at.
//
// Every fetch of the list is tagged with a generation number. A fetch only
// lands if nothing newer has landed and the list was not invalidated or
// mutated after the fetch started, so a slow response can never overwrite
// a newer one.
package dashboard

import (
	"slices"
	"sync"
	"time"

	"github.com/chetan-code/taskboard/internal/models"
)

type View struct {
	mu      sync.Mutex
	started uint64
	applied uint64
	floor   uint64
	tasks   []models.Task
	valid   bool
}

// Begin marks the start of a list fetch and returns its generation.
func (v *View) Begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.started++
	return v.started
}

// Commit stores the result of fetch gen. It returns false when the result is stale.
func (v *View) Commit(gen uint64, tasks []models.Task) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen <= v.applied || gen <= v.floor {
		return false
	}
	v.tasks = slices.Clone(tasks)
	v.applied = gen
	v.valid = true
	return true
}

// Invalidate drops the cached list and every fetch still in flight.
func (v *View) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.floor = v.started
	v.tasks = nil
	v.valid = false
}

func (v *View) Snapshot() ([]models.Task, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.valid {
		return nil, false
	}
	return slices.Clone(v.tasks), true
}

// Find returns the cached task with the given id.
func (v *View) Find(id int) (models.Task, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.valid {
		return models.Task{}, false
	}
	i := slices.IndexFunc(v.tasks, func(t models.Task) bool { return t.ID == id })
	if i < 0 {
		return models.Task{}, false
	}
	return v.tasks[i], true
}

// SetCompletion updates the completion flag of the matching task only.
func (v *View) SetCompletion(id int, done bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.valid {
		return false
	}
	i := slices.IndexFunc(v.tasks, func(t models.Task) bool { return t.ID == id })
	if i < 0 {
		return false
	}
	v.tasks[i].IsCompleted = done
	v.floor = v.started
	return true
}

// Remove drops exactly the task with the given id.
func (v *View) Remove(id int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.valid {
		return false
	}
	i := slices.IndexFunc(v.tasks, func(t models.Task) bool { return t.ID == id })
	if i < 0 {
		return false
	}
	v.tasks = slices.Delete(v.tasks, i, i+1)
	v.floor = v.started
	return true
}

type entry struct {
	view    *View
	expires time.Time
}

// Views holds one View per session credential.
type Views struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxAge  time.Duration
	now     func() time.Time
}

// NewViews keeps a view until its credential expires, or for maxAge when
// the credential carries no expiry.
func NewViews(maxAge time.Duration) *Views {
	return &Views{entries: make(map[string]*entry), maxAge: maxAge, now: time.Now}
}

// For returns the view of the session identified by key, creating it when
// needed. Expired views are dropped on the way.
func (vs *Views) For(key string, expires time.Time) *View {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	now := vs.now()
	if expires.IsZero() {
		expires = now.Add(vs.maxAge)
	}
	for k, e := range vs.entries {
		if now.After(e.expires) {
			delete(vs.entries, k)
		}
	}

	e, ok := vs.entries[key]
	if !ok {
		e = &entry{view: &View{}, expires: expires}
		vs.entries[key] = e
	}
	return e.view
}

func (vs *Views) Drop(key string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	delete(vs.entries, key)
}

func (vs *Views) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.entries)
}
