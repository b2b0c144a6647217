package data

// DataContext exposes the decoded sections of one report to rules.
type DataContext interface {
	Get(key DependencyKey) (any, bool)
}

// MapDataContext is a read-only map-backed DataContext.
type MapDataContext struct {
	sections map[DependencyKey]any
}

// NewMapDataContext wraps sections. A nil map behaves as an empty context.
func NewMapDataContext(sections map[DependencyKey]any) *MapDataContext {
	return &MapDataContext{sections: sections}
}

func (c *MapDataContext) Get(key DependencyKey) (any, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.sections[key]
	return val, ok
}

// Len reports how many sections are present.
func (c *MapDataContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sections)
}
