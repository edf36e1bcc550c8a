package http

import (
	"slices"

	"http-session/application/util/rule"
)

// Headers is a field map keyed by canonical field name.
// Insertion order is not kept; [Headers.Fields] yields names in sorted order.
type Headers struct{ underlying map[string][]string }

func NewHeaders(initial map[string]string) Headers {
	h := Headers{underlying: make(map[string][]string, len(initial))}
	for k, v := range initial {
		h.Add(k, v)
	}
	return h
}

// HeadersFrom creates headers from raw field lines.
// Repeated names are kept as separate values in arrival order.
func HeadersFrom(fields []Field) Headers {
	h := Headers{underlying: make(map[string][]string, len(fields))}
	for _, field := range fields {
		h.Add(string(field.Name), string(field.Value))
	}
	return h
}

// Get assumes the field is a singleton field.
// Even if key has multiple values, it will only return the first one.
// For list-based field, use [Headers.Values].
func (h *Headers) Get(key string) (value string, ok bool) {
	v, ok := h.underlying[canonical(key)]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (h *Headers) Values(key string) []string {
	return slices.Clone(h.underlying[canonical(key)])
}

func (h *Headers) Has(key string) bool {
	_, ok := h.underlying[canonical(key)]
	return ok
}

// Set assumes the field is a singleton field.
// It overwrites existing value instead of appending to it.
// For list-based field, use [Headers.Add].
func (h *Headers) Set(key, value string) {
	h.init()
	h.underlying[canonical(key)] = []string{value}
}

func (h *Headers) Add(key, value string) {
	h.init()
	key = canonical(key)
	h.underlying[key] = append(h.underlying[key], value)
}

func (h *Headers) Del(key string) { delete(h.underlying, canonical(key)) }

func (h *Headers) Len() int { return len(h.underlying) }

func (h *Headers) Clone() Headers {
	clone := Headers{underlying: make(map[string][]string, len(h.underlying))}
	for k, v := range h.underlying {
		clone.underlying[k] = slices.Clone(v)
	}
	return clone
}

// Fields returns one raw field per value, sorted by name.
func (h *Headers) Fields() []Field {
	names := make([]string, 0, len(h.underlying))
	for k := range h.underlying {
		names = append(names, k)
	}
	slices.Sort(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		for _, v := range h.underlying[name] {
			fields = append(fields, Field{Name: []byte(name), Value: []byte(v)})
		}
	}
	return fields
}

func (h *Headers) init() {
	if h.underlying == nil {
		h.underlying = make(map[string][]string)
	}
}

func canonical(s string) string {
	if rule.IsValidToken(s) {
		s = toCanonicalFieldName(s)
	}
	return s
}

// This only works for valid token.
func toCanonicalFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}
