package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrorKey marks a source slot whose every strategy failed.
const ErrorKey = "error"

// Metrics is an ordered label -> value mapping. Scraped sources have no fixed
// schema, so values stay opaque strings and keys keep first-insertion order.
// All methods are safe on a nil receiver.
type Metrics struct {
	keys   []string
	values map[string]string
}

func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]string)}
}

// MetricsOf builds a mapping from alternating key, value arguments.
func MetricsOf(kv ...string) *Metrics {
	m := NewMetrics()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// ErrorMetrics returns a mapping holding only the error marker.
func ErrorMetrics(reason string) *Metrics {
	return MetricsOf(ErrorKey, reason)
}

// Set stores value under key. A repeated key keeps its original position but
// takes the latest value.
func (m *Metrics) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Metrics) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Value returns the value for key or "" when absent.
func (m *Metrics) Value(key string) string {
	v, _ := m.Get(key)
	return v
}

func (m *Metrics) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Metrics) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Metrics) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Metrics) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Each calls fn for every pair in order until fn returns false.
func (m *Metrics) Each(fn func(key, value string) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// ErrorReason reports the error marker, if the source failed.
func (m *Metrics) ErrorReason() (string, bool) {
	return m.Get(ErrorKey)
}

func (m *Metrics) HasError() bool {
	return m.Has(ErrorKey)
}

// Usable reports whether the mapping carries data a derived pass may read.
func (m *Metrics) Usable() bool {
	return m.Len() > 0 && !m.HasError()
}

// Clone returns an independent copy.
func (m *Metrics) Clone() *Metrics {
	out := NewMetrics()
	m.Each(func(k, v string) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Map returns an unordered copy for callers that only need lookups.
func (m *Metrics) Map() map[string]string {
	out := make(map[string]string, m.Len())
	m.Each(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

// MarshalJSON writes keys in insertion order.
func (m *Metrics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	m.Each(func(k, v string) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = json.Marshal(v); err != nil {
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a flat JSON object, keeping document order.
// Non-string values are stored in their raw JSON text.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("metrics: invalid JSON")
	}
	res := gjson.ParseBytes(data)
	if res.Type == gjson.Null {
		return nil
	}
	if !res.IsObject() {
		return fmt.Errorf("metrics: expected object, got %s", res.Type)
	}
	m.keys = nil
	m.values = make(map[string]string)
	res.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.String {
			m.Set(k.String(), v.String())
		} else {
			m.Set(k.String(), v.Raw)
		}
		return true
	})
	return nil
}
