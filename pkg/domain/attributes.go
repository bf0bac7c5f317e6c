package domain

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Attributes holds the attributes of a Node.
// Keys are unique and iteration follows insertion order, so re-serializing a parsed
// node writes its attributes back in the order they were read.
// The zero value is an empty, ready to use set.
type Attributes struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewAttributes builds Attributes from alternating key/value pairs.
// A trailing key without a value is ignored.
func NewAttributes(kv ...string) Attributes {
	var a Attributes
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i], kv[i+1])
	}
	return a
}

// AttributesFromMap builds Attributes from a plain map.
// Go maps carry no order, so keys are inserted in sorted order to stay deterministic.
func AttributesFromMap(src map[string]string) Attributes {
	var a Attributes
	for _, k := range slices.Sorted(maps.Keys(src)) {
		a.Set(k, src[k])
	}
	return a
}

func (a *Attributes) init() {
	if a.m == nil {
		a.m = orderedmap.New[string, string]()
	}
}

// Get returns the value stored under key.
func (a Attributes) Get(key string) (string, bool) {
	if a.m == nil {
		return "", false
	}
	return a.m.Get(key)
}

// Set stores value under key. Existing keys keep their original position.
func (a *Attributes) Set(key, value string) {
	a.init()
	a.m.Set(key, value)
}

// Delete removes key and reports whether it was present.
func (a *Attributes) Delete(key string) bool {
	if a.m == nil {
		return false
	}
	_, ok := a.m.Delete(key)
	return ok
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	if a.m == nil {
		return 0
	}
	return a.m.Len()
}

// Keys returns the attribute names in insertion order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, a.Len())
	a.Each(func(k, _ string) {
		keys = append(keys, k)
	})
	return keys
}

// Each calls fn for every attribute in insertion order.
func (a Attributes) Each(fn func(key, value string)) {
	if a.m == nil {
		return
	}
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Merge copies every attribute of patch into a. Patch values win on collision.
func (a *Attributes) Merge(patch Attributes) {
	patch.Each(func(k, v string) {
		a.Set(k, v)
	})
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	var out Attributes
	out.Merge(a)
	return out
}

// Map returns the attributes as a plain map.
func (a Attributes) Map() map[string]string {
	out := make(map[string]string, a.Len())
	a.Each(func(k, v string) {
		out[k] = v
	})
	return out
}

// Equal reports whether both sets hold the same key/value pairs, ignoring order.
func (a Attributes) Equal(b Attributes) bool {
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Each(func(k, v string) {
		if other, ok := b.Get(k); !ok || other != v {
			equal = false
		}
	})
	return equal
}

// MarshalJSON writes the attributes as a JSON object in insertion order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a.m == nil {
		return []byte("{}"), nil
	}
	return a.m.MarshalJSON()
}

// UnmarshalJSON reads a JSON object, keeping the document order of its keys.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		a.m = nil
		return nil
	}
	m := orderedmap.New[string, string]()
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	a.m = m
	return nil
}
