package hierarchy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stratodrive/stratodrive/internal/model"
)

// mapFetch serves parentRefs from a fixed map, standing in for the DB.
func mapFetch(folders map[string]*parentRef) func(id string) (*parentRef, error) {
	return func(id string) (*parentRef, error) {
		ref, ok := folders[id]
		if !ok {
			return nil, fmt.Errorf("folder %s: %w", id, model.ErrNotFound)
		}
		return ref, nil
	}
}

func strPtr(s string) *string { return &s }

func TestWalkToRootOrdersRootFirst(t *testing.T) {
	folders := map[string]*parentRef{
		"docs": {ID: "docs", Name: "Documents"},
		"2024": {ID: "2024", Name: "2024", ParentID: strPtr("docs")},
		"tax":  {ID: "tax", Name: "Taxes", ParentID: strPtr("2024")},
	}

	crumbs, err := walkToRoot(mapFetch(folders), "tax")
	if err != nil {
		t.Fatalf("walkToRoot: %v", err)
	}

	want := []string{"Documents", "2024", "Taxes"}
	if len(crumbs) != len(want) {
		t.Fatalf("got %d crumbs, want %d", len(crumbs), len(want))
	}
	for i, name := range want {
		if crumbs[i].Name != name {
			t.Errorf("crumb %d = %q, want %q", i, crumbs[i].Name, name)
		}
	}
}

func TestWalkToRootSingleFolder(t *testing.T) {
	folders := map[string]*parentRef{
		"root": {ID: "root", Name: "Stuff"},
	}

	crumbs, err := walkToRoot(mapFetch(folders), "root")
	if err != nil {
		t.Fatalf("walkToRoot: %v", err)
	}
	if len(crumbs) != 1 || crumbs[0].ID != "root" {
		t.Fatalf("got %v, want single crumb for root", crumbs)
	}
}

func TestWalkToRootDetectsCycle(t *testing.T) {
	// a -> b -> a
	folders := map[string]*parentRef{
		"a": {ID: "a", Name: "A", ParentID: strPtr("b")},
		"b": {ID: "b", Name: "B", ParentID: strPtr("a")},
	}

	_, err := walkToRoot(mapFetch(folders), "a")
	if !errors.Is(err, model.ErrCorruptHierarchy) {
		t.Fatalf("got %v, want ErrCorruptHierarchy", err)
	}
}

func TestWalkToRootSelfParent(t *testing.T) {
	folders := map[string]*parentRef{
		"loop": {ID: "loop", Name: "Loop", ParentID: strPtr("loop")},
	}

	_, err := walkToRoot(mapFetch(folders), "loop")
	if !errors.Is(err, model.ErrCorruptHierarchy) {
		t.Fatalf("got %v, want ErrCorruptHierarchy", err)
	}
}

func TestWalkToRootMissingAncestor(t *testing.T) {
	folders := map[string]*parentRef{
		"child": {ID: "child", Name: "Child", ParentID: strPtr("gone")},
	}

	_, err := walkToRoot(mapFetch(folders), "child")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
