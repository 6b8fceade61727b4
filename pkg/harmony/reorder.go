package harmony

import (
	"fmt"
	"sort"
)

// PositionRef is one sibling's standing in an ordered list.
type PositionRef struct {
	// ID identifies the sibling.
	ID Snowflake
	// Position is the sibling's current sort index.
	Position int
	// Category groups siblings that order among themselves. Channels order
	// categories separately from regular channels; roles all share one group.
	Category bool
}

// PositionUpdate is one entry of a reorder patch.
type PositionUpdate struct {
	ID       Snowflake `json:"id"`
	Position int       `json:"position"`
}

// ReorderPositions computes the minimal patch that moves one sibling to a new
// sort index.
//
// Only siblings of the moved entity's category whose current position lies in
// [min(current,new), max(current,new)] are touched; everything outside that
// range keeps its position, bounding both payload size and blast radius. Ties
// on equal positions keep their pre-existing relative order (stable sort).
//
// Moving to the current position is a no-op and returns an empty patch.
// An unknown moved id fails with ErrUnknownSibling.
func ReorderPositions(siblings []PositionRef, moved Snowflake, newPosition int) ([]PositionUpdate, error) {
	var movedRef *PositionRef
	for index := range siblings {
		if siblings[index].ID == moved {
			movedRef = &siblings[index]
			break
		}
	}
	if movedRef == nil {
		return nil, fmt.Errorf("reorder to position %d: %s: %w", newPosition, moved, ErrUnknownSibling)
	}

	current := movedRef.Position
	if newPosition == current {
		return nil, nil
	}

	low, high := current, newPosition
	if low > high {
		low, high = high, low
	}

	affected := make([]PositionRef, 0, len(siblings))
	for _, sibling := range siblings {
		if sibling.ID == moved || sibling.Category != movedRef.Category {
			continue
		}
		if sibling.Position < low || sibling.Position > high {
			continue
		}
		affected = append(affected, sibling)
	}
	sort.SliceStable(affected, func(i, j int) bool {
		return affected[i].Position < affected[j].Position
	})

	if newPosition > current {
		affected = append(affected, *movedRef)
	} else {
		affected = append([]PositionRef{*movedRef}, affected...)
	}

	patch := make([]PositionUpdate, len(affected))
	for index, sibling := range affected {
		patch[index] = PositionUpdate{ID: sibling.ID, Position: low + index}
	}

	return patch, nil
}
