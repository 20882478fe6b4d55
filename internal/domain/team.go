package domain

// Side labels the two teams of a match.
type Side string

const (
	SideRadiant Side = "radiant"
	SideDire    Side = "dire"
)

// IsValid checks if a side token is valid.
func (s Side) IsValid() bool {
	return s == SideRadiant || s == SideDire
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideRadiant {
		return SideDire
	}
	return SideRadiant
}

// TeamNumber maps a side to the persistence layer's team number.
func (s Side) TeamNumber() int {
	if s == SideRadiant {
		return 1
	}
	return 2
}

// TeamSlot is one player of a built team together with the position they
// were assigned.
type TeamSlot struct {
	PlayerID       int64   `json:"playerId"`
	Name           string  `json:"name"`
	AssignedRole   Role    `json:"assignedRole"`
	OnRole         bool    `json:"onRole"`
	Value          float64 `json:"value"`
	EffectiveValue float64 `json:"effectiveValue"`
}

// Team is a transient 5-player team built for a single shuffle. It is never
// persisted; the pending match stores the id sets instead.
type Team struct {
	Slots        [5]TeamSlot `json:"slots"`
	Value        float64     `json:"value"`
	OffRoleCount int         `json:"offRoleCount"`
}

// PlayerIDs returns the ids of the five players in slot order.
func (t *Team) PlayerIDs() []int64 {
	ids := make([]int64, 5)
	for i, s := range t.Slots {
		ids[i] = s.PlayerID
	}
	return ids
}

// Contains reports whether the team includes the player.
func (t *Team) Contains(playerID int64) bool {
	for _, s := range t.Slots {
		if s.PlayerID == playerID {
			return true
		}
	}
	return false
}

// SlotForRole returns the slot assigned the given position.
func (t *Team) SlotForRole(r Role) *TeamSlot {
	for i := range t.Slots {
		if t.Slots[i].AssignedRole == r {
			return &t.Slots[i]
		}
	}
	return nil
}
