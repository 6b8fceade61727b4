package harmony

// ChannelKind discriminates guild channel categories on the wire.
type ChannelKind int

const (
	// ChannelKindText is a guild text channel.
	ChannelKindText ChannelKind = 0
	// ChannelKindVoice is a guild voice channel.
	ChannelKindVoice ChannelKind = 2
	// ChannelKindCategory is a grouping channel that parents others.
	ChannelKindCategory ChannelKind = 4
)

// RawChannel is the wire shape of a guild channel.
type RawChannel struct {
	ID       Snowflake    `json:"id"`
	GuildID  Snowflake    `json:"guild_id,omitempty"`
	ParentID Snowflake    `json:"parent_id,omitempty"`
	Kind     *ChannelKind `json:"type,omitempty"`
	Name     *string      `json:"name,omitempty"`
	Position *int         `json:"position,omitempty"`
}

// GuildChannel is a materialized guild channel.
//
// Position participates in the guild's ordered sibling list; positions are not
// required to be contiguous or unique at rest.
type GuildChannel struct {
	ID       Snowflake
	GuildID  Snowflake
	ParentID Snowflake
	Kind     ChannelKind
	Name     string
	Position int
}

// Key returns the channel identifier.
func (c *GuildChannel) Key() Snowflake {
	return c.ID
}

// IsCategory reports whether the channel parents others.
//
// Categories order among themselves, separately from regular channels.
func (c *GuildChannel) IsCategory() bool {
	return c.Kind == ChannelKindCategory
}

// ApplyPatch folds one raw payload into the channel in place.
func (c *GuildChannel) ApplyPatch(raw RawChannel) {
	if !raw.GuildID.IsZero() {
		c.GuildID = raw.GuildID
	}
	if !raw.ParentID.IsZero() {
		c.ParentID = raw.ParentID
	}
	if raw.Kind != nil {
		c.Kind = *raw.Kind
	}
	if raw.Name != nil {
		c.Name = *raw.Name
	}
	if raw.Position != nil {
		c.Position = *raw.Position
	}
}

// MaterializeChannel converts one raw payload into a fresh channel entity.
func MaterializeChannel(raw RawChannel) (*GuildChannel, error) {
	channel := &GuildChannel{ID: raw.ID}
	channel.ApplyPatch(raw)

	return channel, nil
}

// NewChannelStore creates a guild channel store with the given capacity.
func NewChannelStore(capacity Capacity) *Store[RawChannel, *GuildChannel] {
	return NewStore(capacity, MaterializeChannel, func(raw RawChannel) Snowflake {
		return raw.ID
	})
}

var _ Patchable[RawChannel] = (*GuildChannel)(nil)
