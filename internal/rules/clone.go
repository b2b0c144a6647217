package rules

import "reflect"

// Clone returns a copy of r that can be configured without affecting the
// registered rule. Pointer-to-struct rules are copied shallowly, so
// Configure implementations must replace option fields rather than mutate
// them in place. Other rule kinds are returned as is.
func Clone(r Rule) Rule {
	if w, ok := r.(*AllowListWrapper); ok {
		return &AllowListWrapper{Rule: Clone(w.Rule), allowList: w.allowList}
	}
	v := reflect.ValueOf(r)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return r
	}
	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())
	return cp.Interface().(Rule)
}
