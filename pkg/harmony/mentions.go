package harmony

import "fmt"

const maxExplicitMentions = 100

// AllowedMentions describes which reference categories an outgoing message may
// ping.
//
// For roles and users the blanket flag and the explicit list are mutually
// exclusive on the wire: a set AllRoles/AllUsers flag wins and the explicit
// list must be empty.
type AllowedMentions struct {
	// Everyone permits @everyone and @here pings.
	Everyone bool
	// AllRoles permits pinging any mentioned role.
	AllRoles bool
	// Roles is an explicit allow-list of pingable role ids (at most 100).
	Roles []Snowflake
	// AllUsers permits pinging any mentioned user.
	AllUsers bool
	// Users is an explicit allow-list of pingable user ids (at most 100).
	Users []Snowflake
	// RepliedUser permits pinging the author of the replied-to message.
	RepliedUser bool
}

// AllowedMentionsPayload is the strict request shape the service accepts.
//
// Parse is always present, possibly empty; an empty payload suppresses every
// ping.
type AllowedMentionsPayload struct {
	Parse       []string    `json:"parse"`
	Roles       []Snowflake `json:"roles,omitempty"`
	Users       []Snowflake `json:"users,omitempty"`
	RepliedUser bool        `json:"replied_user,omitempty"`
}

// NormalizeAllowedMentions canonicalizes a sparse mention spec into the
// service's strict request shape.
//
// A nil spec falls back to the caller's configured default; a nil fallback
// yields the suppress-everything payload. Explicit allow-lists above 100
// entries fail with ErrTooManyMentions.
func NormalizeAllowedMentions(spec, fallback *AllowedMentions) (AllowedMentionsPayload, error) {
	if spec == nil {
		spec = fallback
	}
	payload := AllowedMentionsPayload{Parse: []string{}}
	if spec == nil {
		return payload, nil
	}

	if spec.Everyone {
		payload.Parse = append(payload.Parse, "everyone")
	}

	switch {
	case spec.AllRoles:
		payload.Parse = append(payload.Parse, "roles")
	case len(spec.Roles) > maxExplicitMentions:
		return AllowedMentionsPayload{}, fmt.Errorf("normalize allowed mentions: %d roles: %w", len(spec.Roles), ErrTooManyMentions)
	case len(spec.Roles) > 0:
		payload.Roles = append([]Snowflake(nil), spec.Roles...)
	}

	switch {
	case spec.AllUsers:
		payload.Parse = append(payload.Parse, "users")
	case len(spec.Users) > maxExplicitMentions:
		return AllowedMentionsPayload{}, fmt.Errorf("normalize allowed mentions: %d users: %w", len(spec.Users), ErrTooManyMentions)
	case len(spec.Users) > 0:
		payload.Users = append([]Snowflake(nil), spec.Users...)
	}

	payload.RepliedUser = spec.RepliedUser

	return payload, nil
}
