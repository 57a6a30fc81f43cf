package server

import (
	"net/http"
	"sort"
	"strings"
)

const setCookie = "set-cookie"

// Headers is a response header collection with Web API semantics: names
// are case-insensitive and stored lower-cased, values keep insertion order.
// The zero value is ready to use.
type Headers struct {
	names  []string
	values map[string][]string
}

// NewHeaders returns an empty collection.
func NewHeaders() *Headers {
	return &Headers{}
}

// Append adds value to name, keeping existing values.
func (h *Headers) Append(name, value string) {
	key := strings.ToLower(name)
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, key)
	}
	h.values[key] = append(h.values[key], value)
}

// Set replaces every value of name with value.
func (h *Headers) Set(name, value string) {
	h.Delete(name)
	h.Append(name, value)
}

// Delete removes name.
func (h *Headers) Delete(name string) {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, n := range h.names {
		if n == key {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	if h == nil {
		return false
	}
	_, ok := h.values[strings.ToLower(name)]
	return ok
}

// Get returns the values of name joined with ", ", or "" when absent.
func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	return strings.Join(h.values[strings.ToLower(name)], ", ")
}

// SetCookies returns every set-cookie value separately.
func (h *Headers) SetCookies() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.values[setCookie]...)
}

// Len returns the number of distinct names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// Entries returns name/value pairs sorted by name. Values of one name are
// combined, except set-cookie which yields one pair per value.
func (h *Headers) Entries() [][2]string {
	if h == nil {
		return nil
	}
	names := append([]string(nil), h.names...)
	sort.Strings(names)
	out := make([][2]string, 0, len(names))
	for _, name := range names {
		if name == setCookie {
			for _, v := range h.values[name] {
				out = append(out, [2]string{name, v})
			}
			continue
		}
		out = append(out, [2]string{name, h.Get(name)})
	}
	return out
}

// OutgoingHeaders converts h into an http.Header. It returns nil for a nil
// or empty collection. Several set-cookie values are kept as separate
// entries; any other name carries its combined value.
func OutgoingHeaders(h *Headers) http.Header {
	if h == nil {
		return nil
	}
	entries := h.Entries()
	if len(entries) == 0 {
		return nil
	}
	out := make(http.Header, len(entries))
	for _, e := range entries {
		out.Set(e[0], e[1])
	}
	if cookies := h.SetCookies(); len(cookies) > 1 {
		out[http.CanonicalHeaderKey(setCookie)] = cookies
	}
	return out
}

// writeHeaders copies h onto the response before the status is written.
func writeHeaders(w http.ResponseWriter, h *Headers) {
	dst := w.Header()
	for name, values := range OutgoingHeaders(h) {
		dst[name] = values
	}
}
