package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestChangedIgnoresInsertionOrder checks that equal pair sets never trigger a reload.
func TestChangedIgnoresInsertionOrder(t *testing.T) {
	t.Parallel()

	a := Inventory{}
	a["nvidia-driver"] = "535.129.03"
	a["libnvidia-gl"] = "535.129.03"
	a["nvidia-kernel-dkms"] = "535.129.03"

	b := Inventory{}
	b["nvidia-kernel-dkms"] = "535.129.03"
	b["nvidia-driver"] = "535.129.03"
	b["libnvidia-gl"] = "535.129.03"

	require.False(t, Changed(a, b))
	require.False(t, Changed(Inventory{}, nil))
	require.Empty(t, Diff(a, b))
}

// TestChangedDetectsAnyDifference covers version bumps, additions and removals.
func TestChangedDetectsAnyDifference(t *testing.T) {
	t.Parallel()

	base := Inventory{"A": "1", "B": "1"}

	cases := map[string]Inventory{
		"version bump": {"A": "2", "B": "1"},
		"addition":     {"A": "1", "B": "1", "C": "1"},
		"removal":      {"A": "1"},
		"empty":        {},
		"rename":       {"A": "1", "C": "1"},
	}

	for name, other := range cases {
		require.True(t, Changed(base, other), name)
		require.True(t, Changed(other, base), name)
	}
}

// TestDiff checks per-package deltas and their ordering.
func TestDiff(t *testing.T) {
	t.Parallel()

	before := Inventory{"a": "1", "b": "1", "c": "1"}
	after := Inventory{"b": "2", "c": "1", "d": "1"}

	require.Equal(t, []Change{
		{Name: "a", Kind: Removed, From: "1"},
		{Name: "b", Kind: Updated, From: "1", To: "2"},
		{Name: "d", Kind: Added, To: "1"},
	}, Diff(before, after))
}

// TestChangeString checks the human readable rendering used in logs.
func TestChangeString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "x: added 2", Change{Name: "x", Kind: Added, To: "2"}.String())
	require.Equal(t, "x: removed 1", Change{Name: "x", Kind: Removed, From: "1"}.String())
	require.Equal(t, "x: 1 -> 2", Change{Name: "x", Kind: Updated, From: "1", To: "2"}.String())
}

// TestNamesAndString ensure enumeration is sorted regardless of map order.
func TestNamesAndString(t *testing.T) {
	t.Parallel()

	inv := Inventory{"zeta": "3", "alpha": "1", "mid": "2"}

	require.Equal(t, []string{"alpha", "mid", "zeta"}, inv.Names())
	require.Equal(t, "alpha 1\nmid 2\nzeta 3\n", inv.String())
	require.Empty(t, Inventory(nil).Names())
}
