package data

import (
	"reflect"
	"testing"
)

func TestMapDataContext_Get(t *testing.T) {
	tests := []struct {
		name      string
		dc        *MapDataContext
		key       DependencyKey
		wantOK    bool
		wantValue any
	}{
		{name: "nil receiver returns not found", dc: nil, key: DepRepoMetadata},
		{name: "nil map treated as empty", dc: NewMapDataContext(nil), key: DepRepoMetadata},
		{
			name:   "missing key returns not found",
			dc:     NewMapDataContext(map[DependencyKey]any{DepRepoMetadata: "value"}),
			key:    DepRepoDefaultBranchCodeowners,
			wantOK: false,
		},
		{
			name:      "present key returns value",
			dc:        NewMapDataContext(map[DependencyKey]any{DepRepoMetadata: "value"}),
			key:       DepRepoMetadata,
			wantOK:    true,
			wantValue: "value",
		},
		{
			name:   "present nil value is found",
			dc:     NewMapDataContext(map[DependencyKey]any{DepRepoDefaultBranchClassicProtection: nil}),
			key:    DepRepoDefaultBranchClassicProtection,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.dc.Get(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.wantValue {
				t.Fatalf("expected value=%v, got %v", tt.wantValue, got)
			}
		})
	}
}

func TestTrackingDataContext_Undeclared(t *testing.T) {
	inner := NewMapDataContext(map[DependencyKey]any{DepRepoMetadata: 1})
	tc := NewTrackingDataContext(inner)

	if _, ok := tc.Get(DepRepoMetadata); !ok {
		t.Fatalf("expected metadata to be found")
	}
	if _, ok := tc.Get(DepRepoDefaultBranchCodeowners); ok {
		t.Fatalf("expected codeowners to be missing")
	}

	want := []DependencyKey{DepRepoDefaultBranchCodeowners, DepRepoMetadata}
	if got := tc.AccessedKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("AccessedKeys: got %v want %v", got, want)
	}

	got := tc.Undeclared([]DependencyKey{DepRepoMetadata})
	if !reflect.DeepEqual(got, []string{string(DepRepoDefaultBranchCodeowners)}) {
		t.Fatalf("Undeclared: got %v", got)
	}
	if got := tc.Undeclared(want); got != nil {
		t.Fatalf("Undeclared with all declared: got %v", got)
	}
}
