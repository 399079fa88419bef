package store

import "encoding/json"

// Typed wraps a single named blob in Backend, decoding/encoding via
// JSON (the language-neutral serialization §4.3 calls for) and
// supplying a default value on first read. It holds no in-memory
// cache beyond what a single Get/Set call produces, per §4.3.
type Typed[T any] struct {
	backend Backend
	key     string
	zero    T
}

// NewTyped builds a Typed accessor over key, with zero as the value
// returned when no blob has been written yet.
func NewTyped[T any](backend Backend, key string, zero T) Typed[T] {
	return Typed[T]{backend: backend, key: key, zero: zero}
}

// Get reads and decodes the current value, or returns the configured
// zero value if nothing has been written yet.
func (t Typed[T]) Get() (T, error) {
	raw, ok, err := t.backend.Get(t.key)
	if err != nil {
		return t.zero, err
	}
	if !ok {
		return t.zero, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return t.zero, ErrStateCorrupt
	}
	return v, nil
}

// Set encodes and persists v, overwriting the current blob.
func (t Typed[T]) Set(v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.backend.Set(t.key, raw)
}
