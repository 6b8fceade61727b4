package harmony

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultMessageCapacity = 200
)

// Option mutates client configuration.
type Option func(*Client)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithMessageCapacity sets the message cache retention mode.
func WithMessageCapacity(capacity Capacity) Option {
	return func(client *Client) {
		client.messages = NewMessageStore(capacity)
	}
}

// WithChannelCapacity sets the channel cache retention mode.
func WithChannelCapacity(capacity Capacity) Option {
	return func(client *Client) {
		client.channels = NewChannelStore(capacity)
	}
}

// WithRoleCapacity sets the role cache retention mode.
func WithRoleCapacity(capacity Capacity) Option {
	return func(client *Client) {
		client.roles = NewRoleStore(capacity)
	}
}

// WithDefaultAllowedMentions sets the fallback mention spec applied when a
// send request carries none.
func WithDefaultAllowedMentions(mentions AllowedMentions) Option {
	return func(client *Client) {
		client.defaultMentions = &mentions
	}
}

func withClock(clock func() time.Time) Option {
	return func(client *Client) {
		if clock != nil {
			client.clock = clock
		}
	}
}

func withSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(client *Client) {
		if sleep != nil {
			client.sleep = sleep
		}
	}
}

// Client maintains the process-local entity caches and issues the multi-step
// mutations built on top of them.
//
// The caches are rebuilt from scratch on process start; there is no
// persistence and no cross-process coherence.
type Client struct {
	requester       Requester
	logger          *slog.Logger
	clock           func() time.Time
	sleep           func(context.Context, time.Duration) error
	defaultMentions *AllowedMentions

	messages *Store[RawMessage, *Message]
	channels *Store[RawChannel, *GuildChannel]
	roles    *Store[RawRole, *Role]
}

// New creates a client around one transport collaborator.
func New(requester Requester, options ...Option) (*Client, error) {
	if requester == nil {
		return nil, fmt.Errorf("new client: nil requester")
	}

	client := &Client{
		requester: requester,
		logger:    slog.Default(),
		clock:     time.Now,
		sleep:     sleepContext,
		messages:  NewMessageStore(Bounded(defaultMessageCapacity)),
		channels:  NewChannelStore(Unbounded()),
		roles:     NewRoleStore(Unbounded()),
	}
	for _, option := range options {
		option(client)
	}

	return client, nil
}

// Messages returns the message cache.
func (c *Client) Messages() *Store[RawMessage, *Message] {
	return c.messages
}

// Channels returns the guild channel cache.
func (c *Client) Channels() *Store[RawChannel, *GuildChannel] {
	return c.channels
}

// Roles returns the guild role cache.
func (c *Client) Roles() *Store[RawRole, *Role] {
	return c.roles
}

// IngestMessage folds one event-stream message payload into the cache.
func (c *Client) IngestMessage(raw RawMessage) (*Message, error) {
	message, err := c.messages.Update(raw)
	if err != nil {
		return nil, fmt.Errorf("ingest message: %w", err)
	}

	return message, nil
}

// IngestMessageDelete drops one deleted message from the cache.
func (c *Client) IngestMessageDelete(id Snowflake) {
	c.messages.Remove(id)
}

// IngestChannel folds one event-stream channel payload into the cache.
func (c *Client) IngestChannel(raw RawChannel) (*GuildChannel, error) {
	channel, err := c.channels.Update(raw)
	if err != nil {
		return nil, fmt.Errorf("ingest channel: %w", err)
	}

	return channel, nil
}

// IngestChannelDelete drops one deleted channel and sweeps its cached messages.
func (c *Client) IngestChannelDelete(id Snowflake) {
	c.channels.Remove(id)
	c.messages.Sweep(func(message *Message) bool {
		return message.ChannelID == id
	})
}

// IngestRole folds one event-stream role payload into the cache.
func (c *Client) IngestRole(raw RawRole) (*Role, error) {
	role, err := c.roles.Update(raw)
	if err != nil {
		return nil, fmt.Errorf("ingest role: %w", err)
	}

	return role, nil
}

// IngestRoleDelete drops one deleted role from the cache.
func (c *Client) IngestRoleDelete(id Snowflake) {
	c.roles.Remove(id)
}

// SendMessageRequest describes one outgoing channel message.
type SendMessageRequest struct {
	// Content is the message body.
	Content string
	// AllowedMentions overrides the client's default mention spec.
	AllowedMentions *AllowedMentions
	// ReplyTo optionally links the message as a reply.
	ReplyTo Snowflake
}

type sendMessagePayload struct {
	Content          string                 `json:"content"`
	AllowedMentions  AllowedMentionsPayload `json:"allowed_mentions"`
	MessageReference *messageReference      `json:"message_reference,omitempty"`
}

type messageReference struct {
	MessageID Snowflake `json:"message_id"`
}

// SendMessage posts a message and folds the response into the message cache.
func (c *Client) SendMessage(ctx context.Context, channelID Snowflake, request SendMessageRequest) (*Message, error) {
	mentions, err := NormalizeAllowedMentions(request.AllowedMentions, c.defaultMentions)
	if err != nil {
		return nil, fmt.Errorf("send message to channel %s: %w", channelID, err)
	}

	payload := sendMessagePayload{
		Content:         request.Content,
		AllowedMentions: mentions,
	}
	if !request.ReplyTo.IsZero() {
		payload.MessageReference = &messageReference{MessageID: request.ReplyTo}
	}

	var raw RawMessage
	transportRequest := Request{
		Method:    http.MethodPost,
		Route:     RouteChannelMessages(channelID, 0, 0, 0),
		NeedsAuth: true,
		Body:      payload,
	}
	if err := c.requester.Do(ctx, transportRequest, &raw); err != nil {
		return nil, fmt.Errorf("send message to channel %s: %w", channelID, err)
	}

	message, err := c.messages.Update(raw)
	if err != nil {
		return nil, fmt.Errorf("send message to channel %s: cache response: %w", channelID, err)
	}

	return message, nil
}

// DeleteMessage removes one message with an optional audit reason.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID Snowflake, reason string) error {
	if err := deleteMessages(ctx, c.requester, c.clock, channelID, []Snowflake{messageID}, reason); err != nil {
		return err
	}
	c.messages.Remove(messageID)

	return nil
}

// BulkDeleteMessages deletes up to 100 messages in one batch.
//
// Exactly one identifier routes through the single-delete path. A batch
// containing an identifier older than BulkDeleteMaxAge is rejected locally
// before any network call. Returns the number of identifiers submitted.
func (c *Client) BulkDeleteMessages(ctx context.Context, channelID Snowflake, ids []Snowflake, reason string) (int, error) {
	if len(ids) > purgeBatchSize {
		return 0, fmt.Errorf("bulk delete in channel %s: %d ids exceed batch size %d: %w",
			channelID, len(ids), purgeBatchSize, ErrInvalidLimit)
	}
	if err := deleteMessages(ctx, c.requester, c.clock, channelID, ids, reason); err != nil {
		return 0, err
	}
	for _, id := range ids {
		c.messages.Remove(id)
	}

	return len(ids), nil
}

// PurgeMessages runs the scan-and-purge pipeline over one channel and returns
// the total count of identifiers submitted for deletion.
//
// Two invocations over different channels are independent; invocations over
// the same channel must be serialized by the caller.
func (c *Client) PurgeMessages(ctx context.Context, channelID Snowflake, opts PurgeOptions) (int, error) {
	pipeline := &purgePipeline{
		requester: c.requester,
		logger:    c.logger,
		clock:     c.clock,
		sleep:     c.sleep,
		channelID: channelID,
		opts:      opts,
	}

	deleted, err := pipeline.run(ctx)
	if err != nil {
		return 0, err
	}

	c.logger.InfoContext(ctx,
		"purge completed",
		"channel_id", channelID.String(),
		"deleted", deleted,
	)

	return deleted, nil
}

// SetChannelPosition moves one guild channel to a new sort index.
//
// The sibling set is read from the channel cache, falling back to a fresh
// listing from the service when the channel is not cached. The submitted
// patch is returned; a move to the current position submits nothing.
func (c *Client) SetChannelPosition(ctx context.Context, guildID, channelID Snowflake, position int) ([]PositionUpdate, error) {
	if !c.channels.Has(channelID) {
		if err := c.fetchGuildChannels(ctx, guildID); err != nil {
			return nil, fmt.Errorf("set channel %s position: %w", channelID, err)
		}
	}

	siblings := make([]PositionRef, 0)
	for _, channel := range c.channels.Filter(func(channel *GuildChannel) bool {
		return channel.GuildID == guildID
	}) {
		siblings = append(siblings, PositionRef{
			ID:       channel.ID,
			Position: channel.Position,
			Category: channel.IsCategory(),
		})
	}

	patch, err := ReorderPositions(siblings, channelID, position)
	if err != nil {
		return nil, fmt.Errorf("set channel %s position: %w", channelID, err)
	}
	if len(patch) == 0 {
		return nil, nil
	}

	request := Request{
		Method:    http.MethodPatch,
		Route:     RouteGuildChannels(guildID),
		NeedsAuth: true,
		Body:      patch,
	}
	if err := c.requester.Do(ctx, request, nil); err != nil {
		return nil, fmt.Errorf("set channel %s position: %w", channelID, err)
	}

	for _, update := range patch {
		if channel, ok := c.channels.Get(update.ID); ok {
			channel.Position = update.Position
		}
	}

	return patch, nil
}

// SetRolePosition moves one guild role to a new sort index.
//
// Same contract as SetChannelPosition, over the guild's role list.
func (c *Client) SetRolePosition(ctx context.Context, guildID, roleID Snowflake, position int) ([]PositionUpdate, error) {
	if !c.roles.Has(roleID) {
		if err := c.fetchGuildRoles(ctx, guildID); err != nil {
			return nil, fmt.Errorf("set role %s position: %w", roleID, err)
		}
	}

	siblings := make([]PositionRef, 0)
	for _, role := range c.roles.Filter(func(role *Role) bool {
		return role.GuildID == guildID
	}) {
		siblings = append(siblings, PositionRef{ID: role.ID, Position: role.Position})
	}

	patch, err := ReorderPositions(siblings, roleID, position)
	if err != nil {
		return nil, fmt.Errorf("set role %s position: %w", roleID, err)
	}
	if len(patch) == 0 {
		return nil, nil
	}

	request := Request{
		Method:    http.MethodPatch,
		Route:     RouteGuildRoles(guildID),
		NeedsAuth: true,
		Body:      patch,
	}
	if err := c.requester.Do(ctx, request, nil); err != nil {
		return nil, fmt.Errorf("set role %s position: %w", roleID, err)
	}

	for _, update := range patch {
		if role, ok := c.roles.Get(update.ID); ok {
			role.Position = update.Position
		}
	}

	return patch, nil
}

func (c *Client) fetchGuildChannels(ctx context.Context, guildID Snowflake) error {
	var page []RawChannel
	request := Request{Method: http.MethodGet, Route: RouteGuildChannels(guildID), NeedsAuth: true}
	if err := c.requester.Do(ctx, request, &page); err != nil {
		return fmt.Errorf("fetch guild %s channels: %w", guildID, err)
	}

	for _, raw := range page {
		if raw.GuildID.IsZero() {
			raw.GuildID = guildID
		}
		if _, err := c.channels.Update(raw); err != nil {
			return fmt.Errorf("fetch guild %s channels: cache %s: %w", guildID, raw.ID, err)
		}
	}

	return nil
}

func (c *Client) fetchGuildRoles(ctx context.Context, guildID Snowflake) error {
	var page []RawRole
	request := Request{Method: http.MethodGet, Route: RouteGuildRoles(guildID), NeedsAuth: true}
	if err := c.requester.Do(ctx, request, &page); err != nil {
		return fmt.Errorf("fetch guild %s roles: %w", guildID, err)
	}

	for _, raw := range page {
		if raw.GuildID.IsZero() {
			raw.GuildID = guildID
		}
		if _, err := c.roles.Update(raw); err != nil {
			return fmt.Errorf("fetch guild %s roles: cache %s: %w", guildID, raw.ID, err)
		}
	}

	return nil
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
