package doc

// Map is an insertion-ordered string-keyed map of values.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{values: map[string]Value{}}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Value returns the value stored under key, or an absent value.
func (m *Map) Value(key string) Value {
	v, _ := m.Get(key)
	return v
}

// Has reports whether key exists.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Text returns the string stored under key, or "" for any other kind.
func (m *Map) Text(key string) string {
	s, _ := m.Value(key).AsString()
	return s
}

// Set stores v under key. Existing keys keep their position.
func (m *Map) Set(key string, v Value) {
	if m.values == nil {
		m.values = map[string]Value{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		if !fn(key, m.values[key]) {
			return
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	out.keys = make([]string, len(m.keys))
	copy(out.keys, m.keys)
	for key, v := range m.values {
		out.values[key] = v.Clone()
	}
	return out
}

// ShallowCopy copies m's entries without cloning nested values.
func (m *Map) ShallowCopy() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	out.keys = make([]string, len(m.keys))
	copy(out.keys, m.keys)
	for key, v := range m.values {
		out.values[key] = v
	}
	return out
}

// Pick returns a new map with the listed keys that exist in m, in the
// order given.
func (m *Map) Pick(keys ...string) *Map {
	out := NewMap()
	for _, key := range keys {
		if v, ok := m.Get(key); ok && !v.IsAbsent() {
			out.Set(key, v.Clone())
		}
	}
	return out
}

// WithLeading returns a copy of m whose first key is key. When m already
// holds key, m's value wins and only the position changes.
func (m *Map) WithLeading(key string, v Value) *Map {
	out := NewMap()
	if existing, ok := m.Get(key); ok {
		v = existing
	}
	out.Set(key, v)
	m.Range(func(k string, val Value) bool {
		if k != key {
			out.Set(k, val)
		}
		return true
	})
	return out
}
