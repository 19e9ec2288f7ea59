// FILE: lixenwraith/confbind/keys.go
package confbind

import (
	"slices"
	"strconv"
	"strings"
)

// CandidateKeys returns the ordered, deduplicated list of keys probed for one property.
//
// Every configured key is combined with each prefix, outermost prefix first, then with each fallback
// prefix, and finally the fallback key is appended. An empty prefix emits the bare key. When no primary
// prefixes exist the bare keys are emitted.
func CandidateKeys(prefixes, keys, fallbackPrefixes []string, fallbackKey string) []string {
	keys = dedupe(keys)
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}

	out := make([]string, 0, (len(prefixes)+len(fallbackPrefixes))*len(keys)+1)
	seen := make(map[string]struct{}, cap(out))
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	for _, p := range prefixes {
		for _, k := range keys {
			add(joinKey(p, k))
		}
	}
	for _, p := range fallbackPrefixes {
		for _, k := range keys {
			add(joinKey(p, k))
		}
	}
	if fallbackKey != "" {
		add(fallbackKey)
	}
	return out
}

// joinKey joins non-empty segments with dots.
func joinKey(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// PrefixStack accumulates prefixes while descending into nested configurations.
// Each level holds the full prefixes of one nesting depth. Stacks are immutable values.
type PrefixStack struct {
	levels [][]string
}

// NewPrefixStack returns a stack whose first level is the given prefixes.
// No prefixes yields an empty stack.
func NewPrefixStack(prefixes ...string) PrefixStack {
	if len(prefixes) == 0 {
		return PrefixStack{}
	}
	return PrefixStack{levels: [][]string{dedupe(prefixes)}}
}

// IsEmpty reports whether the stack has no levels.
func (s PrefixStack) IsEmpty() bool { return len(s.levels) == 0 }

// Push returns a new stack with a level combining the innermost level with every prefix.
// Pushing no prefixes returns the stack unchanged.
func (s PrefixStack) Push(prefixes ...string) PrefixStack {
	if len(prefixes) == 0 {
		return s
	}
	parents := []string{""}
	if len(s.levels) > 0 {
		parents = s.levels[len(s.levels)-1]
	}
	level := make([]string, 0, len(parents)*len(prefixes))
	for _, parent := range parents {
		for _, p := range prefixes {
			level = append(level, joinKey(parent, p))
		}
	}
	return s.with(dedupe(level))
}

// PushIndex pushes the prefixes of a list element: each prefix is suffixed with the index.
func (s PrefixStack) PushIndex(index int, prefixes ...string) PrefixStack {
	idx := strconv.Itoa(index)
	if len(prefixes) == 0 {
		return s.Push(idx)
	}
	indexed := make([]string, len(prefixes))
	for i, p := range prefixes {
		indexed[i] = joinKey(p, idx)
	}
	return s.Push(indexed...)
}

// Flatten returns all prefixes from the outermost level to the innermost.
func (s PrefixStack) Flatten() []string {
	var out []string
	for _, level := range s.levels {
		out = append(out, level...)
	}
	return dedupe(out)
}

// Depth is the number of levels.
func (s PrefixStack) Depth() int { return len(s.levels) }

// From flattens the levels from depth inward, outermost first.
func (s PrefixStack) From(depth int) []string {
	if depth < 0 {
		depth = 0
	}
	var out []string
	for _, level := range s.levels[min(depth, len(s.levels)):] {
		out = append(out, level...)
	}
	return dedupe(out)
}

// Innermost returns the innermost level, nil for an empty stack.
func (s PrefixStack) Innermost() []string {
	if len(s.levels) == 0 {
		return nil
	}
	return slices.Clone(s.levels[len(s.levels)-1])
}

func (s PrefixStack) with(level []string) PrefixStack {
	levels := make([][]string, len(s.levels), len(s.levels)+1)
	copy(levels, s.levels)
	return PrefixStack{levels: append(levels, level)}
}

// Reset returns an empty stack, used when a property starts a fresh prefix chain.
func (s PrefixStack) Reset() PrefixStack { return PrefixStack{} }
