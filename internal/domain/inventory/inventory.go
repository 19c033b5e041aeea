package inventory

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Inventory maps installed package names to their version strings.
// Versions are opaque and only compared for equality.
type Inventory map[string]string

// ChangeKind classifies a per-package delta between two inventories.
type ChangeKind string

const (
	// Added means the package is only present in the later snapshot.
	Added ChangeKind = "added"
	// Removed means the package is only present in the earlier snapshot.
	Removed ChangeKind = "removed"
	// Updated means the package is present in both with different versions.
	Updated ChangeKind = "updated"
)

// Change is a single package delta.
type Change struct {
	// Name is the package name.
	Name string
	// Kind tells what happened to the package.
	Kind ChangeKind
	// From is the earlier version, empty for Added.
	From string
	// To is the later version, empty for Removed.
	To string
}

func (c Change) String() string {
	switch c.Kind {
	case Added:
		return fmt.Sprintf("%s: added %s", c.Name, c.To)
	case Removed:
		return fmt.Sprintf("%s: removed %s", c.Name, c.From)
	default:
		return fmt.Sprintf("%s: %s -> %s", c.Name, c.From, c.To)
	}
}

// Names returns the package names sorted lexically.
func (inv Inventory) Names() []string {
	return slices.Sorted(maps.Keys(inv))
}

// Equal reports whether both inventories hold exactly the same name/version pairs.
func (inv Inventory) Equal(other Inventory) bool {
	return maps.Equal(inv, other)
}

// String renders one "name version" line per package in name order.
func (inv Inventory) String() string {
	var b strings.Builder

	for _, name := range inv.Names() {
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(inv[name])
		b.WriteByte('\n')
	}

	return b.String()
}

// Changed reports whether a reload is needed after moving from before to after.
// Any addition, removal or version change counts.
func Changed(before, after Inventory) bool {
	return !before.Equal(after)
}

// Diff lists per-package deltas from before to after, sorted by name.
func Diff(before, after Inventory) []Change {
	names := make(map[string]struct{}, len(before)+len(after))
	for name := range before {
		names[name] = struct{}{}
	}

	for name := range after {
		names[name] = struct{}{}
	}

	var changes []Change

	for _, name := range slices.Sorted(maps.Keys(names)) {
		from, inBefore := before[name]
		to, inAfter := after[name]

		switch {
		case inBefore && !inAfter:
			changes = append(changes, Change{Name: name, Kind: Removed, From: from})
		case !inBefore && inAfter:
			changes = append(changes, Change{Name: name, Kind: Added, To: to})
		case from != to:
			changes = append(changes, Change{Name: name, Kind: Updated, From: from, To: to})
		}
	}

	return changes
}
