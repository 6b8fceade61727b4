package harmony

import (
	"context"
	"net/url"
	"strconv"
)

// Request is one transport-level operation envelope.
//
// The transport owns serialization, authentication, per-route rate-limit
// accounting, and transparent retry of transient rate-limit rejections; this
// package only describes what to send.
type Request struct {
	// Method is the HTTP verb.
	Method string
	// Route is the path relative to the API base, including any query string.
	Route string
	// NeedsAuth marks requests that must carry the bot authorization header.
	NeedsAuth bool
	// Body is the JSON-encodable request payload, nil for bodyless requests.
	Body any
	// Reason is an optional audit-log annotation forwarded as a header.
	Reason string
}

// Requester is the transport collaborator.
//
// Do performs one request and decodes the JSON response into out when out is
// non-nil. Failures surface as structured transport errors and are never
// converted by callers in this package.
type Requester interface {
	Do(ctx context.Context, request Request, out any) error
}

// RouteChannelMessages returns the message listing/creation route.
//
// before, after, and limit are encoded as query parameters when set.
func RouteChannelMessages(channelID Snowflake, before, after Snowflake, limit int) string {
	route := "/channels/" + channelID.String() + "/messages"

	query := url.Values{}
	if !before.IsZero() {
		query.Set("before", before.String())
	}
	if !after.IsZero() {
		query.Set("after", after.String())
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if len(query) > 0 {
		route += "?" + query.Encode()
	}

	return route
}

// RouteChannelMessage returns the single-message route.
func RouteChannelMessage(channelID, messageID Snowflake) string {
	return "/channels/" + channelID.String() + "/messages/" + messageID.String()
}

// RouteChannelBulkDelete returns the batched message deletion route.
func RouteChannelBulkDelete(channelID Snowflake) string {
	return "/channels/" + channelID.String() + "/messages/bulk-delete"
}

// RouteGuildChannels returns the guild channel listing/reorder route.
func RouteGuildChannels(guildID Snowflake) string {
	return "/guilds/" + guildID.String() + "/channels"
}

// RouteGuildRoles returns the guild role listing/reorder route.
func RouteGuildRoles(guildID Snowflake) string {
	return "/guilds/" + guildID.String() + "/roles"
}
