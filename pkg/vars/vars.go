// Package vars holds the execution context: the name→value mapping that steps
// write into and that substitution and conditions read from.
package vars

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Context is an insertion-ordered, grow-only variable scope for one run.
// Overwriting an existing name keeps its original position. There is no
// delete: a variable, once written, stays visible for the rest of the run.
type Context struct {
	values *orderedmap.OrderedMap[string, any]
}

// New creates an empty context.
func New() *Context {
	return &Context{values: orderedmap.New[string, any]()}
}

// FromMap creates a context seeded with the given values in sorted key order.
func FromMap(seed map[string]string) *Context {
	c := New()
	keys := make([]string, 0, len(seed))
	for k := range seed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.Set(k, seed[k])
	}
	return c
}

// Set writes a variable.
func (c *Context) Set(name string, value any) {
	c.values.Set(name, value)
}

// Lookup returns a variable's value and whether it is set.
func (c *Context) Lookup(name string) (any, bool) {
	return c.values.Get(name)
}

// String returns a variable rendered as text, or "" if unset.
func (c *Context) String(name string) string {
	v, ok := c.values.Get(name)
	if !ok {
		return ""
	}
	return Format(v)
}

// Len returns the number of variables.
func (c *Context) Len() int { return c.values.Len() }

// Names returns variable names in first-write order.
func (c *Context) Names() []string {
	out := make([]string, 0, c.values.Len())
	for pair := c.values.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Snapshot returns a copy of the current values.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, c.values.Len())
	for pair := c.values.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// Format renders a context value as text. Booleans render as True or False,
// nil as the empty string, and floats always carry a fractional part
// (3.0, not 3).
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return formatFloat(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
