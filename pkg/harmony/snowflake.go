package harmony

import (
	"fmt"
	"strconv"
	"time"
)

// Epoch is the platform epoch in Unix milliseconds (2015-01-01T00:00:00Z).
// Snowflake timestamps are offsets from this instant.
const Epoch = 1420070400000

// Snowflake is a 64-bit platform identifier.
//
// The upper 42 bits encode the entity's creation time in milliseconds since
// Epoch, so snowflakes compare numerically in chronological order. The zero
// value means "unset" and is never a valid entity key.
type Snowflake uint64

// ParseSnowflake parses the wire (decimal string) form of a snowflake.
func ParseSnowflake(raw string) (Snowflake, error) {
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse snowflake %q: %w", raw, err)
	}

	return Snowflake(value), nil
}

// SnowflakeFromTime builds a boundary snowflake for the given instant.
//
// The worker, process, and sequence bits are zero, so the result sorts before
// every real snowflake generated at the same millisecond. It is intended for
// cursor and cutoff comparisons, not as an entity identity.
func SnowflakeFromTime(t time.Time) Snowflake {
	millis := t.UnixMilli() - Epoch
	if millis < 0 {
		return 0
	}

	return Snowflake(uint64(millis) << 22)
}

// IsZero reports whether the snowflake is unset.
func (s Snowflake) IsZero() bool {
	return s == 0
}

// String returns the wire (decimal string) form.
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Time returns the creation instant embedded in the snowflake.
func (s Snowflake) Time() time.Time {
	millis := int64(s>>22) + Epoch

	return time.UnixMilli(millis).UTC()
}

// MarshalJSON encodes the snowflake as a JSON string, matching the wire shape.
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts both string and bare-number encodings.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if raw == "null" || raw == "" {
		*s = 0
		return nil
	}

	parsed, err := ParseSnowflake(raw)
	if err != nil {
		return fmt.Errorf("unmarshal snowflake: %w", err)
	}
	*s = parsed

	return nil
}
