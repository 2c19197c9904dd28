package evaluator

import (
	"reflect"
	"sync"
)

// cycleStore holds this cycle's working sensor values: it starts as a
// copy of the batch read and is updated in place as each rule's actions
// commit, so later layers observe earlier layers' outputs within the same
// cycle even though the store write itself is deferred to the end (spec
// §4.7 steps 1-5). Guarded by a mutex so same-layer rules can run
// concurrently under groupParallelRules.
type cycleStore struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func newCycleStore(initial map[string]interface{}) *cycleStore {
	values := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &cycleStore{values: values}
}

func (c *cycleStore) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *cycleStore) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// emitTracker remembers the last emitted value per (rule, action), the
// state on_change compares against (spec §4.7 step 4).
type emitTracker struct {
	mu   sync.Mutex
	last map[string]emitRecord
}

type emitRecord struct {
	value interface{}
	set   bool
}

func newEmitTracker() *emitTracker {
	return &emitTracker{last: make(map[string]emitRecord)}
}

// mark records value as the last-seen value for key without affecting
// the on_change write decision path.
func (t *emitTracker) mark(key string, value interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[key] = emitRecord{value: value, set: true}
}

func (t *emitTracker) shouldWrite(key string, value interface{}, always bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if always {
		t.last[key] = emitRecord{value: value, set: true}
		return true
	}
	prev, had := t.last[key]
	if !had || !reflect.DeepEqual(prev.value, value) {
		t.last[key] = emitRecord{value: value, set: true}
		return true
	}
	return false
}
