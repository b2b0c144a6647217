package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry = make(map[string]Rule)
	mu       sync.RWMutex
)

func Register(r Rule) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[r.ID()]; exists {
		panic(fmt.Sprintf("rule %s already registered", r.ID()))
	}
	if strings.TrimSpace(r.Module()) == "" {
		panic(fmt.Sprintf("rule %s has no module", r.ID()))
	}
	// Every rule gets allowlist support through the wrapper.
	registry[r.ID()] = &AllowListWrapper{Rule: r}
}

func List() []Rule {
	mu.RLock()
	defer mu.RUnlock()
	return listLocked()
}

func listLocked() []Rule {
	var out []Rule
	for _, r := range registry {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Resolve selects rules by a comma-separated list of IDs. Empty selects all.
func Resolve(selector string) ([]Rule, error) {
	mu.RLock()
	defer mu.RUnlock()

	if strings.TrimSpace(selector) == "" {
		return listLocked(), nil
	}

	var selected []Rule
	for _, id := range strings.Split(selector, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		r, ok := registry[id]
		if !ok {
			return nil, fmt.Errorf("rule not found: %s", id)
		}
		selected = append(selected, r)
	}
	return selected, nil
}

// Modules returns the sorted names of all modules with at least one rule.
func Modules() []string {
	mu.RLock()
	defer mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range registry {
		seen[r.Module()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ForModules returns the rules of the named modules, sorted by ID.
// Module names match case-insensitively; an unknown module is an error.
func ForModules(modules []string) ([]Rule, error) {
	mu.RLock()
	defer mu.RUnlock()

	wanted := make(map[string]bool, len(modules))
	for _, m := range modules {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			wanted[m] = false
		}
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("no rule modules requested")
	}

	var out []Rule
	for _, r := range listLocked() {
		key := strings.ToLower(r.Module())
		if _, ok := wanted[key]; ok {
			wanted[key] = true
			out = append(out, r)
		}
	}

	var missing []string
	for m, found := range wanted {
		if !found {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("rule module not found: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
