package data

import "sort"

// TrackingDataContext records every key read through it. The local engine
// uses it to reject rules that read sections they did not declare.
type TrackingDataContext struct {
	inner    DataContext
	accessed map[DependencyKey]struct{}
}

func NewTrackingDataContext(inner DataContext) *TrackingDataContext {
	return &TrackingDataContext{
		inner:    inner,
		accessed: make(map[DependencyKey]struct{}),
	}
}

func (c *TrackingDataContext) Get(key DependencyKey) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.accessed[key] = struct{}{}
	if c.inner == nil {
		return nil, false
	}
	return c.inner.Get(key)
}

// AccessedKeys returns the keys read so far, sorted.
func (c *TrackingDataContext) AccessedKeys() []DependencyKey {
	if c == nil {
		return nil
	}
	keys := make([]DependencyKey, 0, len(c.accessed))
	for k := range c.accessed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Undeclared returns the accessed keys missing from declared, sorted.
func (c *TrackingDataContext) Undeclared(declared []DependencyKey) []string {
	accessed := c.AccessedKeys()
	if len(accessed) == 0 {
		return nil
	}
	decl := make(map[DependencyKey]struct{}, len(declared))
	for _, d := range declared {
		decl[d] = struct{}{}
	}
	var out []string
	for _, k := range accessed {
		if _, ok := decl[k]; ok {
			continue
		}
		out = append(out, string(k))
	}
	return out
}
