package harmony

import (
	"fmt"
	"time"
)

// RawUser is the wire shape of a message author.
type RawUser struct {
	ID       Snowflake `json:"id"`
	Username string    `json:"username"`
	Bot      bool      `json:"bot,omitempty"`
}

// User is a materialized message author.
type User struct {
	ID       Snowflake
	Username string
	Bot      bool
}

// RawMessage is the wire shape of a channel message.
//
// Optional fields are pointers so partial edit payloads only overwrite what
// they carry.
type RawMessage struct {
	ID              Snowflake  `json:"id"`
	ChannelID       Snowflake  `json:"channel_id"`
	GuildID         Snowflake  `json:"guild_id,omitempty"`
	Author          *RawUser   `json:"author,omitempty"`
	Content         *string    `json:"content,omitempty"`
	Pinned          *bool      `json:"pinned,omitempty"`
	EditedTimestamp *time.Time `json:"edited_timestamp,omitempty"`
}

// Message is a materialized channel message.
type Message struct {
	ID        Snowflake
	ChannelID Snowflake
	GuildID   Snowflake
	Author    User
	Content   string
	Pinned    bool
	EditedAt  time.Time
}

// Key returns the message identifier.
func (m *Message) Key() Snowflake {
	return m.ID
}

// CreatedAt returns the creation instant embedded in the message snowflake.
func (m *Message) CreatedAt() time.Time {
	return m.ID.Time()
}

// ApplyPatch folds one raw payload into the message in place.
func (m *Message) ApplyPatch(raw RawMessage) {
	if !raw.ChannelID.IsZero() {
		m.ChannelID = raw.ChannelID
	}
	if !raw.GuildID.IsZero() {
		m.GuildID = raw.GuildID
	}
	if raw.Author != nil {
		m.Author = User{ID: raw.Author.ID, Username: raw.Author.Username, Bot: raw.Author.Bot}
	}
	if raw.Content != nil {
		m.Content = *raw.Content
	}
	if raw.Pinned != nil {
		m.Pinned = *raw.Pinned
	}
	if raw.EditedTimestamp != nil {
		m.EditedAt = raw.EditedTimestamp.UTC()
	}
}

// MaterializeMessage converts one raw payload into a fresh message entity.
func MaterializeMessage(raw RawMessage) (*Message, error) {
	message := &Message{ID: raw.ID}
	message.ApplyPatch(raw)

	return message, nil
}

// NewMessageStore creates a message store with the given capacity.
func NewMessageStore(capacity Capacity) *Store[RawMessage, *Message] {
	return NewStore(capacity, MaterializeMessage, func(raw RawMessage) Snowflake {
		return raw.ID
	})
}

var _ Patchable[RawMessage] = (*Message)(nil)

// String returns a short operator-readable message description.
func (m *Message) String() string {
	return fmt.Sprintf("message %s in channel %s", m.ID, m.ChannelID)
}
