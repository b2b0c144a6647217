package engine

import (
	"fmt"

	"auditrelay/internal/rules"
)

// RuleOptions maps rule IDs to parsed --set option assignments.
type RuleOptions map[string]map[string]string

// validate checks that every assignment names a known, configurable rule and
// option, and that the rule accepts the values.
func (o RuleOptions) validate(all []rules.Rule) error {
	known := make(map[string]struct{}, len(all))
	for _, r := range all {
		known[r.ID()] = struct{}{}
	}
	for ruleID := range o {
		if _, ok := known[ruleID]; !ok {
			return fmt.Errorf("unknown rule ID %q", ruleID)
		}
	}
	_, err := o.apply(all)
	return err
}

// apply returns configured copies of rs. The rules passed in, including
// registry instances, are never modified.
func (o RuleOptions) apply(rs []rules.Rule) ([]rules.Rule, error) {
	if len(o) == 0 {
		return rs, nil
	}
	out := make([]rules.Rule, 0, len(rs))
	for _, r := range rs {
		opts, ok := o[r.ID()]
		if !ok {
			out = append(out, r)
			continue
		}
		cr, ok := rules.Clone(r).(rules.ConfigurableRule)
		if !ok {
			return nil, fmt.Errorf("rule %q does not support options", r.ID())
		}

		allowed := make(map[string]struct{})
		for _, opt := range cr.Options() {
			allowed[opt.Name] = struct{}{}
		}
		for name := range opts {
			if _, ok := allowed[name]; !ok {
				return nil, fmt.Errorf("unknown option %q for rule %q", name, r.ID())
			}
		}

		if err := cr.Configure(opts); err != nil {
			return nil, fmt.Errorf("configure rule %q: %w", r.ID(), err)
		}
		out = append(out, cr)
	}
	return out, nil
}
