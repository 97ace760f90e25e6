package value

import (
	"encoding/json"
	"sync"
)

// hook is shared by every wrapper of one tracked tree.
type hook struct {
	mu       sync.Locker
	onChange func()
}

func (h *hook) notify() {
	if h.onChange != nil {
		h.onChange()
	}
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// TrackedObject is a mutation-tracking view over an Object.
//
// Reads of composite fields wrap the child lazily and store the wrapper back
// into the underlying map, so repeated reads return the identical
// *TrackedObject or *TrackedArray. Every write or deletion anywhere in the
// tree invokes the tree's onChange callback.
type TrackedObject struct {
	fields Object
	h      *hook
}

func (*TrackedObject) value() {}

// TrackedArray is a mutation-tracking view over an Array.
type TrackedArray struct {
	items Array
	h     *hook
}

func (*TrackedArray) value() {}

// Track wraps v so that every mutation of it, at any depth, calls onChange.
//
// Scalars are returned unchanged. Already tracked values are returned
// unchanged too and keep the callback they were first wrapped with, which
// also stops recursion through shared or cyclic references.
func Track(v Value, onChange func()) Value {
	return TrackWith(v, nil, onChange)
}

// TrackWith is Track with a lock held around every access to the tree.
// onChange runs after the lock is released.
func TrackWith(v Value, mu sync.Locker, onChange func()) Value {
	if mu == nil {
		mu = noLock{}
	}
	return track(v, &hook{mu: mu, onChange: onChange})
}

// IsTracked reports whether v is a tracked composite.
func IsTracked(v Value) bool {
	switch v.(type) {
	case *TrackedObject, *TrackedArray:
		return true
	}
	return false
}

func track(v Value, h *hook) Value {
	switch val := v.(type) {
	case Object:
		if val == nil {
			val = Object{}
		}
		return &TrackedObject{fields: val, h: h}
	case Array:
		return &TrackedArray{items: val, h: h}
	default:
		return v
	}
}

// Get returns the field's value. Composite children come back tracked.
func (o *TrackedObject) Get(key string) (Value, bool) {
	o.h.mu.Lock()
	defer o.h.mu.Unlock()

	v, ok := o.fields[key]
	if !ok {
		return nil, false
	}
	if IsScalar(v) || IsTracked(v) {
		return v, true
	}
	w := track(v, o.h)
	o.fields[key] = w
	return w, true
}

// GetObject returns the field as a tracked object, if it holds one.
func (o *TrackedObject) GetObject(key string) (*TrackedObject, bool) {
	v, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*TrackedObject)
	return obj, ok
}

// GetArray returns the field as a tracked array, if it holds one.
func (o *TrackedObject) GetArray(key string) (*TrackedArray, bool) {
	v, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.(*TrackedArray)
	return arr, ok
}

// Has reports whether the field exists.
func (o *TrackedObject) Has(key string) bool {
	o.h.mu.Lock()
	defer o.h.mu.Unlock()
	_, ok := o.fields[key]
	return ok
}

// Keys returns the field names in canonical order.
func (o *TrackedObject) Keys() []string {
	o.h.mu.Lock()
	defer o.h.mu.Unlock()
	return o.fields.SortedKeys()
}

// Len returns the number of fields.
func (o *TrackedObject) Len() int {
	o.h.mu.Lock()
	defer o.h.mu.Unlock()
	return len(o.fields)
}

// Set writes the field unconditionally and notifies if the value changed
// or the field was new. A nil v is stored as Null.
func (o *TrackedObject) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}

	o.h.mu.Lock()
	old, had := o.fields[key]
	o.fields[key] = v
	o.h.mu.Unlock()

	if !had || !Equal(old, v) {
		o.h.notify()
	}
}

// Delete removes the field and always notifies, even if it was absent.
func (o *TrackedObject) Delete(key string) {
	o.h.mu.Lock()
	delete(o.fields, key)
	o.h.mu.Unlock()

	o.h.notify()
}

// Raw returns a deep copy of the content with no tracked wrappers.
func (o *TrackedObject) Raw() Object {
	o.h.mu.Lock()
	defer o.h.mu.Unlock()
	return Copy(o.fields).(Object)
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (o *TrackedObject) MarshalJSON() ([]byte, error) {
	o.h.mu.Lock()
	defer o.h.mu.Unlock()
	return MarshalCanonical(o.fields)
}

// Len returns the number of elements.
func (a *TrackedArray) Len() int {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()
	return len(a.items)
}

// At returns element i. Composite elements come back tracked.
// It panics if i is out of range.
func (a *TrackedArray) At(i int) Value {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()

	v := a.items[i]
	if IsScalar(v) || IsTracked(v) {
		return v
	}
	w := track(v, a.h)
	a.items[i] = w
	return w
}

// Set overwrites element i and notifies if it changed.
// It panics if i is out of range.
func (a *TrackedArray) Set(i int, v Value) {
	if v == nil {
		v = Null{}
	}

	if a.swap(i, v) {
		a.h.notify()
	}
}

func (a *TrackedArray) swap(i int, v Value) bool {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()

	old := a.items[i]
	a.items[i] = v
	return !Equal(old, v)
}

// Append adds elements to the end and notifies.
func (a *TrackedArray) Append(vs ...Value) {
	if len(vs) == 0 {
		return
	}

	a.h.mu.Lock()
	for _, v := range vs {
		if v == nil {
			v = Null{}
		}
		a.items = append(a.items, v)
	}
	a.h.mu.Unlock()

	a.h.notify()
}

// RemoveAt deletes element i, shifting later elements down, and always
// notifies. It panics if i is out of range.
func (a *TrackedArray) RemoveAt(i int) {
	a.remove(i)
	a.h.notify()
}

func (a *TrackedArray) remove(i int) {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()

	_ = a.items[i]
	a.items = append(a.items[:i], a.items[i+1:]...)
}

// Raw returns a deep copy of the content with no tracked wrappers.
func (a *TrackedArray) Raw() Array {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()
	return Copy(a.items).(Array)
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (a *TrackedArray) MarshalJSON() ([]byte, error) {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()
	return MarshalCanonical(a.items)
}

// Copy returns a deep copy of v with tracked wrappers replaced by raw
// composites. It does not acquire any tracker lock; callers that share a
// lock with the tree must hold it.
func Copy(v Value) Value {
	switch val := v.(type) {
	case Object:
		out := make(Object, len(val))
		for k, e := range val {
			out[k] = Copy(e)
		}
		return out
	case Array:
		out := make(Array, len(val))
		for i, e := range val {
			out[i] = Copy(e)
		}
		return out
	case *TrackedObject:
		return Copy(val.fields)
	case *TrackedArray:
		return Copy(val.items)
	default:
		return v
	}
}

var (
	_ json.Marshaler = (*TrackedObject)(nil)
	_ json.Marshaler = (*TrackedArray)(nil)
)
