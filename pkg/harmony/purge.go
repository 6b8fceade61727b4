package harmony

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// BulkDeleteMaxAge is the service's maximum age for messages eligible on
	// the batched deletion endpoint. Older messages must be deleted one by one.
	BulkDeleteMaxAge = 14 * 24 * time.Hour

	purgePageSize      = 100
	purgeBatchSize     = 100
	purgeBatchInterval = time.Second
	purgePollInterval  = 250 * time.Millisecond
)

// MessageFilter is the eligibility predicate for scanned messages.
type MessageFilter func(*Message) bool

// ContentContains builds the common substring eligibility filter.
func ContentContains(substring string) MessageFilter {
	return func(message *Message) bool {
		return strings.Contains(message.Content, substring)
	}
}

// PurgeOptions tunes one purge invocation.
type PurgeOptions struct {
	// Before starts the backward scan below this id. Zero starts at the
	// newest message.
	Before Snowflake
	// After bounds the scan: messages at or below this id are not considered.
	After Snowflake
	// Limit caps how many messages are scanned; -1 means no cap. Zero and
	// values below -1 are invalid.
	Limit int
	// Filter selects which scanned messages are queued for deletion; nil
	// queues every scanned message.
	Filter MessageFilter
	// Reason annotates the deletions in the service's audit log.
	Reason string
}

// PurgeError reports a purge aborted by a transport or validation failure.
//
// Deleted carries the count of identifiers already submitted before the
// failure, so partial progress is not silently lost.
type PurgeError struct {
	// Deleted is the number of identifiers submitted before the failure.
	Deleted int
	// Cause is the underlying failure.
	Cause error
}

// Error returns an operator-readable failure summary.
func (e *PurgeError) Error() string {
	return fmt.Sprintf("harmony: purge aborted after %d deletions: %v", e.Deleted, e.Cause)
}

// Unwrap returns the underlying failure.
func (e *PurgeError) Unwrap() error {
	return e.Cause
}

// purgePipeline runs one scan-and-purge invocation over a single channel.
//
// The scanner pages backward through message history filling the accumulation
// buffer while the drainer, running concurrently, submits deletion batches as
// soon as a full one is available. Both sides only share the cursor/buffer
// state below; two pipelines over different channels are fully independent.
type purgePipeline struct {
	requester Requester
	logger    *slog.Logger
	clock     func() time.Time
	sleep     func(context.Context, time.Duration) error
	channelID Snowflake
	opts      PurgeOptions

	mu       sync.Mutex
	buffer   []Snowflake
	scanDone bool
	scanErr  error
}

type scanState int

const (
	scanStateMore scanState = iota
	scanStateFinished
	scanStateFailed
)

func (p *purgePipeline) run(ctx context.Context) (int, error) {
	if p.opts.Limit == 0 || p.opts.Limit < -1 {
		return 0, fmt.Errorf("purge channel %s: limit %d: %w", p.channelID, p.opts.Limit, ErrInvalidLimit)
	}

	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	var scanner sync.WaitGroup
	scanner.Add(1)
	go func() {
		defer scanner.Done()
		err := p.scanPages(scanCtx)

		p.mu.Lock()
		p.scanDone = true
		p.scanErr = err
		p.mu.Unlock()
	}()

	submitted := 0
	for {
		batch, state, scanErr := p.nextBatch()
		switch {
		case state == scanStateFailed:
			scanner.Wait()
			return 0, &PurgeError{Deleted: submitted, Cause: scanErr}
		case len(batch) > 0:
			if err := p.submitBatch(ctx, batch); err != nil {
				cancelScan()
				scanner.Wait()
				return 0, &PurgeError{Deleted: submitted, Cause: err}
			}
			submitted += len(batch)
			if err := p.sleep(ctx, purgeBatchInterval); err != nil {
				cancelScan()
				scanner.Wait()
				return 0, &PurgeError{Deleted: submitted, Cause: err}
			}
		case state == scanStateFinished:
			scanner.Wait()
			return submitted, nil
		default:
			if err := p.sleep(ctx, purgePollInterval); err != nil {
				cancelScan()
				scanner.Wait()
				return 0, &PurgeError{Deleted: submitted, Cause: err}
			}
		}
	}
}

// nextBatch drains up to one deletion batch from the accumulation buffer.
//
// A batch is released once the buffer holds a full batchSize, or whatever
// remains once scanning has finished.
func (p *purgePipeline) nextBatch() ([]Snowflake, scanState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scanDone && p.scanErr != nil {
		return nil, scanStateFailed, p.scanErr
	}
	if len(p.buffer) >= purgeBatchSize {
		batch := p.buffer[:purgeBatchSize:purgeBatchSize]
		p.buffer = p.buffer[purgeBatchSize:]
		return batch, scanStateMore, nil
	}
	if p.scanDone {
		if len(p.buffer) > 0 {
			batch := p.buffer
			p.buffer = nil
			return batch, scanStateMore, nil
		}
		return nil, scanStateFinished, nil
	}

	return nil, scanStateMore, nil
}

func (p *purgePipeline) scanPages(ctx context.Context) error {
	remaining := p.opts.Limit
	before := p.opts.Before
	cutoff := SnowflakeFromTime(p.clock().Add(-BulkDeleteMaxAge))

	for {
		pageLimit := purgePageSize
		if remaining >= 0 && remaining < pageLimit {
			pageLimit = remaining
		}
		if pageLimit == 0 {
			return nil
		}

		var page []RawMessage
		request := Request{
			Method:    http.MethodGet,
			Route:     RouteChannelMessages(p.channelID, before, 0, pageLimit),
			NeedsAuth: true,
		}
		if err := p.requester.Do(ctx, request, &page); err != nil {
			return fmt.Errorf("purge scan channel %s: %w", p.channelID, err)
		}

		for _, raw := range page {
			// Pages arrive newest-first, so the first message past the cutoff
			// proves everything beyond it is also too old.
			if raw.ID < cutoff {
				return nil
			}
			if !p.opts.After.IsZero() && raw.ID <= p.opts.After {
				return nil
			}
			if p.eligible(raw) {
				p.mu.Lock()
				p.buffer = append(p.buffer, raw.ID)
				p.mu.Unlock()
			}
		}

		if len(page) < pageLimit {
			return nil
		}
		if remaining > 0 {
			remaining -= len(page)
		}
		before = page[len(page)-1].ID
	}
}

func (p *purgePipeline) eligible(raw RawMessage) bool {
	if p.opts.Filter == nil {
		return true
	}

	message, err := MaterializeMessage(raw)
	if err != nil {
		return false
	}

	return p.opts.Filter(message)
}

func (p *purgePipeline) submitBatch(ctx context.Context, batch []Snowflake) error {
	if err := deleteMessages(ctx, p.requester, p.clock, p.channelID, batch, p.opts.Reason); err != nil {
		return err
	}
	p.logger.DebugContext(ctx,
		"purge batch submitted",
		"channel_id", p.channelID.String(),
		"batch_size", len(batch),
	)

	return nil
}

// deleteMessages submits one deletion batch through the transport.
//
// A single identifier goes through the lower-overhead single-delete route. A
// multi-identifier batch is validated against the bulk-delete age cutoff
// before any network call, since the service rejects stale batches wholesale.
func deleteMessages(
	ctx context.Context,
	requester Requester,
	clock func() time.Time,
	channelID Snowflake,
	ids []Snowflake,
	reason string,
) error {
	if len(ids) == 0 {
		return nil
	}

	if len(ids) == 1 {
		request := Request{
			Method:    http.MethodDelete,
			Route:     RouteChannelMessage(channelID, ids[0]),
			NeedsAuth: true,
			Reason:    reason,
		}
		if err := requester.Do(ctx, request, nil); err != nil {
			return fmt.Errorf("delete message %s in channel %s: %w", ids[0], channelID, err)
		}
		return nil
	}

	cutoff := SnowflakeFromTime(clock().Add(-BulkDeleteMaxAge))
	for _, id := range ids {
		if id < cutoff {
			return fmt.Errorf("bulk delete in channel %s: message %s: %w", channelID, id, ErrStaleBatch)
		}
	}

	request := Request{
		Method:    http.MethodPost,
		Route:     RouteChannelBulkDelete(channelID),
		NeedsAuth: true,
		Body:      bulkDeletePayload{Messages: ids},
		Reason:    reason,
	}
	if err := requester.Do(ctx, request, nil); err != nil {
		return fmt.Errorf("bulk delete %d messages in channel %s: %w", len(ids), channelID, err)
	}

	return nil
}

type bulkDeletePayload struct {
	Messages []Snowflake `json:"messages"`
}
