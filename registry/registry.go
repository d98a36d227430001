// Package registry owns named values behind generational handles.
package registry

type entry[T any] struct {
	handle Handle
	name   string
	value  T
}

// Registry maps unique names and handles to values. Iteration follows the
// dense storage order, which depends only on the sequence of adds and
// removes.
type Registry[T any] struct {
	handles handleStore
	items   SparseSet[entry[T]]
	names   map[string]Handle
}

func New[T any]() *Registry[T] {
	return &Registry[T]{names: make(map[string]Handle)}
}

// Add stores v under name. It returns false when the name is taken.
func (r *Registry[T]) Add(name string, v T) (Handle, bool) {
	if _, taken := r.names[name]; taken {
		return 0, false
	}
	h := r.handles.create()
	r.items.Set(int(h.slot()), entry[T]{handle: h, name: name, value: v})
	r.names[name] = h
	return h, true
}

func (r *Registry[T]) Alive(h Handle) bool {
	return r.handles.isAlive(h)
}

func (r *Registry[T]) Get(h Handle) (T, bool) {
	var zero T
	if !r.handles.isAlive(h) {
		return zero, false
	}
	e, ok := r.items.Get(int(h.slot()))
	if !ok {
		return zero, false
	}
	return e.value, true
}

// Lookup returns the handle registered under name.
func (r *Registry[T]) Lookup(name string) (Handle, bool) {
	h, ok := r.names[name]
	return h, ok
}

func (r *Registry[T]) ByName(name string) (T, bool) {
	h, ok := r.names[name]
	if !ok {
		var zero T
		return zero, false
	}
	return r.Get(h)
}

// Name returns the name h was added under, or "" for a dead handle.
func (r *Registry[T]) Name(h Handle) string {
	if !r.handles.isAlive(h) {
		return ""
	}
	e, _ := r.items.Get(int(h.slot()))
	return e.name
}

// Remove deletes the entry for h and returns its value.
func (r *Registry[T]) Remove(h Handle) (T, bool) {
	var zero T
	if !r.handles.isAlive(h) {
		return zero, false
	}
	e, ok := r.items.Get(int(h.slot()))
	if !ok {
		return zero, false
	}
	r.items.Remove(int(h.slot()))
	delete(r.names, e.name)
	r.handles.destroy(h)
	return e.value, true
}

func (r *Registry[T]) RemoveName(name string) (T, bool) {
	h, ok := r.names[name]
	if !ok {
		var zero T
		return zero, false
	}
	return r.Remove(h)
}

func (r *Registry[T]) Len() int {
	return r.items.Len()
}

// Values returns a copy of all values in iteration order.
func (r *Registry[T]) Values() []T {
	entries := r.items.Values()
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

// Each visits every entry in iteration order. fn must not add or remove.
func (r *Registry[T]) Each(fn func(h Handle, name string, v T)) {
	for _, e := range r.items.Values() {
		fn(e.handle, e.name, e.value)
	}
}

// Clear removes every entry. Outstanding handles become stale.
func (r *Registry[T]) Clear() {
	for _, e := range append([]entry[T](nil), r.items.Values()...) {
		r.Remove(e.handle)
	}
}
