package harmony

// RawRole is the wire shape of a guild role.
type RawRole struct {
	ID       Snowflake `json:"id"`
	GuildID  Snowflake `json:"guild_id,omitempty"`
	Name     *string   `json:"name,omitempty"`
	Color    *int      `json:"color,omitempty"`
	Position *int      `json:"position,omitempty"`
	Managed  *bool     `json:"managed,omitempty"`
}

// Role is a materialized guild role.
type Role struct {
	ID       Snowflake
	GuildID  Snowflake
	Name     string
	Color    int
	Position int
	Managed  bool
}

// Key returns the role identifier.
func (r *Role) Key() Snowflake {
	return r.ID
}

// ApplyPatch folds one raw payload into the role in place.
func (r *Role) ApplyPatch(raw RawRole) {
	if !raw.GuildID.IsZero() {
		r.GuildID = raw.GuildID
	}
	if raw.Name != nil {
		r.Name = *raw.Name
	}
	if raw.Color != nil {
		r.Color = *raw.Color
	}
	if raw.Position != nil {
		r.Position = *raw.Position
	}
	if raw.Managed != nil {
		r.Managed = *raw.Managed
	}
}

// MaterializeRole converts one raw payload into a fresh role entity.
func MaterializeRole(raw RawRole) (*Role, error) {
	role := &Role{ID: raw.ID}
	role.ApplyPatch(raw)

	return role, nil
}

// NewRoleStore creates a guild role store with the given capacity.
func NewRoleStore(capacity Capacity) *Store[RawRole, *Role] {
	return NewStore(capacity, MaterializeRole, func(raw RawRole) Snowflake {
		return raw.ID
	})
}

var _ Patchable[RawRole] = (*Role)(nil)
