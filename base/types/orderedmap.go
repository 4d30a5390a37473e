package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderedMap is a string-keyed map that remembers insertion order.
// JSON marshalling and unmarshalling keep that order, which matters for
// records and checkpoint trees where column order is part of the contract.
type OrderedMap[V any] struct {
	keys []string
	kv   map[string]V
}

func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{
		kv: map[string]V{},
	}
}

// NewOrderedMapCap pre-sizes the map for the expected number of entries.
func NewOrderedMapCap[V any](capacity int) *OrderedMap[V] {
	return &OrderedMap[V]{
		keys: make([]string, 0, capacity),
		kv:   make(map[string]V, capacity),
	}
}

// Get returns the value for a key. If the key does not exist, the second
// return parameter will be false.
func (m *OrderedMap[V]) Get(key string) (value V, ok bool) {
	value, ok = m.kv[key]
	return
}

// GetN returns the value for a key or the zero value of V if the key is
// absent.
func (m *OrderedMap[V]) GetN(key string) V {
	return m.kv[key]
}

// Set sets (or replaces) the value for a key. Returns true if the key was
// new.
func (m *OrderedMap[V]) Set(key string, value V) bool {
	_, alreadyExist := m.kv[key]
	m.kv[key] = value
	if alreadyExist {
		return false
	}
	m.keys = append(m.keys, key)
	return true
}

// SetIfAbsent sets a value only if the key does not already exist.
func (m *OrderedMap[V]) SetIfAbsent(key string, value V) bool {
	if _, alreadyExist := m.kv[key]; alreadyExist {
		return false
	}
	return m.Set(key, value)
}

// Delete removes a key. Returns true if the key existed.
func (m *OrderedMap[V]) Delete(key string) bool {
	if _, ok := m.kv[key]; !ok {
		return false
	}
	delete(m.kv, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

func (m *OrderedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns keys in insertion order. The returned slice is shared with
// the map and must not be modified.
func (m *OrderedMap[V]) Keys() []string {
	return m.keys
}

func (m *OrderedMap[V]) ForEach(f func(key string, value V)) {
	for _, k := range m.keys {
		f(k, m.kv[k])
	}
}

// ToMap returns a plain unordered map with the same entries.
func (m *OrderedMap[V]) ToMap() map[string]V {
	res := make(map[string]V, len(m.keys))
	for k, v := range m.kv {
		res[k] = v
	}
	return res
}

// Clone returns a deep copy: nested *OrderedMap[any], map[string]any and
// []any values are copied recursively, scalar values are shared.
func (m *OrderedMap[V]) Clone() *OrderedMap[V] {
	if m == nil {
		return nil
	}
	clone := NewOrderedMapCap[V](len(m.keys))
	for _, k := range m.keys {
		// comma-ok keeps nil values nil instead of panicking
		value, _ := deepCopyValue(m.kv[k]).(V)
		clone.Set(k, value)
	}
	return clone
}

func deepCopyValue(value any) any {
	switch v := value.(type) {
	case *OrderedMap[any]:
		return v.Clone()
	case map[string]any:
		cp := make(map[string]any, len(v))
		for k, e := range v {
			cp[k] = deepCopyValue(e)
		}
		return cp
	case []any:
		cp := make([]any, len(v))
		for i, e := range v {
			cp[i] = deepCopyValue(e)
		}
		return cp
	case []byte:
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp
	default:
		return value
	}
}

func (m *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(m.kv[k])
		if err != nil {
			return nil, fmt.Errorf("error marshalling value of key '%s': %v", k, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *OrderedMap[V]) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	res := NewOrderedMap[V]()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value V
		if anyValue, isAny := any(&value).(*any); isAny {
			decoded, err := decodeOrdered(raw)
			if err != nil {
				return err
			}
			*anyValue = decoded
		} else if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		res.Set(key, value)
	}
	*m = *res
	return nil
}

// decodeOrdered decodes a JSON value keeping object key order: objects
// become *OrderedMap[any], arrays []any, numbers json.Number.
func decodeOrdered(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		obj := NewOrderedMap[any]()
		if err := obj.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		var rawElems []json.RawMessage
		if err := json.Unmarshal(trimmed, &rawElems); err != nil {
			return nil, err
		}
		elems := make([]any, len(rawElems))
		for i, rawElem := range rawElems {
			elem, err := decodeOrdered(rawElem)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return elems, nil
	default:
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
