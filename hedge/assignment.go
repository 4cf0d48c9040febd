package hedge

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ColumnPrefix prefixes every assignment column name.
const ColumnPrefix = "Credits_Assigned_Swap_"

// ColumnName returns the assignment column name of a swap.
func ColumnName(swapID int) string {
	return ColumnPrefix + strconv.Itoa(swapID)
}

// ParseColumnName extracts the swap id from an assignment column name.
func ParseColumnName(name string) (int, bool) {
	if !strings.HasPrefix(name, ColumnPrefix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(name, ColumnPrefix))
	if err != nil {
		return 0, false
	}
	return id, true
}

// Assignment is a 0/1 matrix of credits (rows) by swaps (columns).
//
// Rows and columns are addressed by credit and swap ids, not positions.
type Assignment struct {
	creditIDs []int
	swapIDs   []int
	rowOf     map[int]int
	colOf     map[int]int
	cells     []bool
}

// NewAssignment returns an all-zero matrix over the given ids.
func NewAssignment(creditIDs, swapIDs []int) (Assignment, error) {
	a := Assignment{
		creditIDs: append([]int(nil), creditIDs...),
		swapIDs:   append([]int(nil), swapIDs...),
		rowOf:     make(map[int]int, len(creditIDs)),
		colOf:     make(map[int]int, len(swapIDs)),
		cells:     make([]bool, len(creditIDs)*len(swapIDs)),
	}
	for i, id := range creditIDs {
		if _, dup := a.rowOf[id]; dup {
			return Assignment{}, fmt.Errorf("NewAssignment: duplicate credit id %d", id)
		}
		a.rowOf[id] = i
	}
	for j, id := range swapIDs {
		if _, dup := a.colOf[id]; dup {
			return Assignment{}, fmt.Errorf("NewAssignment: duplicate swap id %d", id)
		}
		a.colOf[id] = j
	}
	return a, nil
}

// CreditIDs returns the row ids in row order.
func (a Assignment) CreditIDs() []int {
	return append([]int(nil), a.creditIDs...)
}

// SwapIDs returns the column ids in column order.
func (a Assignment) SwapIDs() []int {
	return append([]int(nil), a.swapIDs...)
}

// Columns returns the column names in column order.
func (a Assignment) Columns() []string {
	out := make([]string, len(a.swapIDs))
	for j, id := range a.swapIDs {
		out[j] = ColumnName(id)
	}
	return out
}

// Set marks (or clears) the assignment of a credit to a swap.
func (a Assignment) Set(creditID, swapID int, assigned bool) error {
	i, ok := a.rowOf[creditID]
	if !ok {
		return fmt.Errorf("Assignment.Set: unknown credit id %d", creditID)
	}
	j, ok := a.colOf[swapID]
	if !ok {
		return fmt.Errorf("Assignment.Set: unknown swap id %d", swapID)
	}
	a.cells[i*len(a.swapIDs)+j] = assigned
	return nil
}

// Get reports whether a credit is assigned to a swap. Unknown ids read as false.
func (a Assignment) Get(creditID, swapID int) bool {
	i, ok := a.rowOf[creditID]
	if !ok {
		return false
	}
	j, ok := a.colOf[swapID]
	if !ok {
		return false
	}
	return a.cells[i*len(a.swapIDs)+j]
}

// Assigned returns the credit ids assigned to a swap, in row order.
func (a Assignment) Assigned(swapID int) []int {
	j, ok := a.colOf[swapID]
	if !ok {
		return nil
	}
	var out []int
	for i, id := range a.creditIDs {
		if a.cells[i*len(a.swapIDs)+j] {
			out = append(out, id)
		}
	}
	return out
}

// SwapsOf returns every swap a credit is assigned to, in column order.
func (a Assignment) SwapsOf(creditID int) []int {
	i, ok := a.rowOf[creditID]
	if !ok {
		return nil
	}
	var out []int
	for j, id := range a.swapIDs {
		if a.cells[i*len(a.swapIDs)+j] {
			out = append(out, id)
		}
	}
	return out
}

// Dropped returns the credit ids assigned to no swap.
func (a Assignment) Dropped() []int {
	var out []int
	for _, id := range a.creditIDs {
		if len(a.SwapsOf(id)) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// CheckExclusive returns an error naming the first credit assigned to more than one swap.
func (a Assignment) CheckExclusive() error {
	for _, id := range a.creditIDs {
		if swaps := a.SwapsOf(id); len(swaps) > 1 {
			return fmt.Errorf("credit %d assigned to swaps %v", id, swaps)
		}
	}
	return nil
}

// LabeledAssignment returns the assignment implied by aggregation labels.
//
// Columns follow the swap targets sorted by id; rows follow the labeled table order
// keyed by Credit.ID.
func LabeledAssignment(labeled []LabeledCredit, swaps []SwapTarget) (Assignment, error) {
	creditIDs := make([]int, len(labeled))
	for i, c := range labeled {
		creditIDs[i] = c.ID
	}
	swapIDs := make([]int, len(swaps))
	for j, s := range swaps {
		swapIDs[j] = s.ID
	}
	sort.Ints(swapIDs)

	a, err := NewAssignment(creditIDs, swapIDs)
	if err != nil {
		return Assignment{}, err
	}
	for _, c := range labeled {
		if c.IsDropped() {
			continue
		}
		if err := a.Set(c.ID, c.Swap, true); err != nil {
			return Assignment{}, fmt.Errorf("LabeledAssignment: %w", err)
		}
	}
	return a, nil
}
