package harmony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestPurgeDrainsFixedSizeBatches(t *testing.T) {
	t.Parallel()

	now := time.Now()
	pageOne := messagePage(now.Add(-time.Hour), 100, "spam")
	pageTwo := messagePage(pageOlderThan(pageOne, 1), 100, "spam")
	pageThree := messagePage(pageOlderThan(pageTwo, 1), 50, "spam")
	requester := &fakeRequester{messagePages: [][]RawMessage{pageOne, pageTwo, pageThree}}
	client := newTestClient(t, requester, now)

	deleted, err := client.PurgeMessages(context.Background(), 500, PurgeOptions{Limit: -1})
	requireNoError(t, err, "purge")
	if deleted != 250 {
		t.Fatalf("deleted %d, want 250", deleted)
	}

	scans := requester.recordedByMethod(http.MethodGet, "/messages")
	if len(scans) != 3 {
		t.Fatalf("scanned %d pages, want 3", len(scans))
	}

	batches := requester.recordedByMethod(http.MethodPost, "/bulk-delete")
	if len(batches) != 3 {
		t.Fatalf("submitted %d batches, want 3", len(batches))
	}
	if sizes := formatBatchSizes(batches); sizes != "100,100,50" {
		t.Fatalf("batch sizes %s, want 100,100,50", sizes)
	}
}

func TestPurgeFilterWithNoMatchesStillScansFully(t *testing.T) {
	t.Parallel()

	now := time.Now()
	pages := make([][]RawMessage, 0, 5)
	newest := now.Add(-time.Hour)
	for i := 0; i < 5; i++ {
		page := messagePage(newest, 100, "innocent")
		pages = append(pages, page)
		newest = pageOlderThan(page, 1)
	}
	requester := &fakeRequester{messagePages: pages}
	client := newTestClient(t, requester, now)

	deleted, err := client.PurgeMessages(context.Background(), 500, PurgeOptions{
		Limit:  -1,
		Filter: ContentContains("never-present"),
	})
	requireNoError(t, err, "purge")
	if deleted != 0 {
		t.Fatalf("deleted %d, want 0", deleted)
	}

	// Five full pages plus the empty page proving exhaustion.
	scans := requester.recordedByMethod(http.MethodGet, "/messages")
	if len(scans) != 6 {
		t.Fatalf("scanned %d pages, want 6", len(scans))
	}
	if deletes := requester.recordedByMethod(http.MethodPost, "/bulk-delete"); len(deletes) != 0 {
		t.Fatalf("submitted %d delete batches, want 0", len(deletes))
	}
	if deletes := requester.recordedByMethod(http.MethodDelete, "/messages/"); len(deletes) != 0 {
		t.Fatalf("submitted %d single deletes, want 0", len(deletes))
	}
}

func TestPurgeSingleMessageUsesSingleDeletePath(t *testing.T) {
	t.Parallel()

	now := time.Now()
	requester := &fakeRequester{messagePages: [][]RawMessage{messagePage(now.Add(-time.Hour), 1, "spam")}}
	client := newTestClient(t, requester, now)

	deleted, err := client.PurgeMessages(context.Background(), 500, PurgeOptions{Limit: -1})
	requireNoError(t, err, "purge")
	if deleted != 1 {
		t.Fatalf("deleted %d, want 1", deleted)
	}

	if bulk := requester.recordedByMethod(http.MethodPost, "/bulk-delete"); len(bulk) != 0 {
		t.Fatalf("single-message purge used the batch path %d times", len(bulk))
	}
	if singles := requester.recordedByMethod(http.MethodDelete, "/messages/"); len(singles) != 1 {
		t.Fatalf("submitted %d single deletes, want 1", len(singles))
	}
}

func TestPurgeStopsAtAgeCutoff(t *testing.T) {
	t.Parallel()

	now := time.Now()
	young := messagePage(now.Add(-time.Hour), 10, "spam")
	old := messagePage(now.Add(-15*24*time.Hour), 90, "spam")
	requester := &fakeRequester{messagePages: [][]RawMessage{append(young, old...)}}
	client := newTestClient(t, requester, now)

	deleted, err := client.PurgeMessages(context.Background(), 500, PurgeOptions{Limit: -1})
	requireNoError(t, err, "purge")
	if deleted != 10 {
		t.Fatalf("deleted %d, want only the 10 messages younger than the cutoff", deleted)
	}

	// The first too-old message ends the scan; no second page is fetched.
	if scans := requester.recordedByMethod(http.MethodGet, "/messages"); len(scans) != 1 {
		t.Fatalf("scanned %d pages, want 1", len(scans))
	}
}

func TestPurgeStopsAtAfterBound(t *testing.T) {
	t.Parallel()

	now := time.Now()
	page := messagePage(now.Add(-time.Hour), 10, "spam")
	requester := &fakeRequester{messagePages: [][]RawMessage{page}}
	client := newTestClient(t, requester, now)

	deleted, err := client.PurgeMessages(context.Background(), 500, PurgeOptions{
		Limit: -1,
		After: page[4].ID,
	})
	requireNoError(t, err, "purge")
	if deleted != 4 {
		t.Fatalf("deleted %d, want the 4 messages above the after bound", deleted)
	}
}

func TestPurgeInvalidLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
	}{
		{name: "zero", limit: 0},
		{name: "below minus one", limit: -2},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, &fakeRequester{}, time.Now())
			_, err := client.PurgeMessages(context.Background(), 500, PurgeOptions{Limit: testCase.limit})
			if !errors.Is(err, ErrInvalidLimit) {
				t.Fatalf("error %v, want ErrInvalidLimit", err)
			}
		})
	}
}

func TestPurgeAbortsWithPartialCountOnTransportFailure(t *testing.T) {
	t.Parallel()

	now := time.Now()
	pageOne := messagePage(now.Add(-time.Hour), 100, "spam")
	pageTwo := messagePage(pageOlderThan(pageOne, 1), 100, "spam")
	pageThree := messagePage(pageOlderThan(pageTwo, 1), 50, "spam")
	transportErr := fmt.Errorf("authorization revoked")

	bulkCalls := 0
	requester := &fakeRequester{messagePages: [][]RawMessage{pageOne, pageTwo, pageThree}}
	requester.fail = func(request Request, _ int) error {
		if request.Method != http.MethodPost || request.Route != RouteChannelBulkDelete(500) {
			return nil
		}
		bulkCalls++
		if bulkCalls == 2 {
			return transportErr
		}
		return nil
	}
	client := newTestClient(t, requester, now)

	deleted, err := client.PurgeMessages(context.Background(), 500, PurgeOptions{Limit: -1})
	if deleted != 0 {
		t.Fatalf("failed purge returned count %d, want 0", deleted)
	}
	if !errors.Is(err, transportErr) {
		t.Fatalf("error %v does not wrap the transport failure", err)
	}

	var purgeErr *PurgeError
	if !errors.As(err, &purgeErr) {
		t.Fatalf("error %v is not a *PurgeError", err)
	}
	if purgeErr.Deleted != 100 {
		t.Fatalf("partial count %d, want 100", purgeErr.Deleted)
	}
}

func TestBulkDeleteRejectsStaleBatchLocally(t *testing.T) {
	t.Parallel()

	now := time.Now()
	requester := &fakeRequester{}
	client := newTestClient(t, requester, now)

	stale := SnowflakeFromTime(now.Add(-20 * 24 * time.Hour))
	fresh := SnowflakeFromTime(now.Add(-time.Hour))

	_, err := client.BulkDeleteMessages(context.Background(), 500, []Snowflake{fresh, stale}, "")
	if !errors.Is(err, ErrStaleBatch) {
		t.Fatalf("error %v, want ErrStaleBatch", err)
	}
	if requests := requester.recorded(); len(requests) != 0 {
		t.Fatalf("stale batch reached the transport: %d requests", len(requests))
	}
}

func TestBulkDeleteSingleIDUsesSingleDeletePath(t *testing.T) {
	t.Parallel()

	now := time.Now()
	requester := &fakeRequester{}
	client := newTestClient(t, requester, now)

	// A lone identifier may be arbitrarily old: the single-delete endpoint
	// carries no age restriction.
	stale := SnowflakeFromTime(now.Add(-30 * 24 * time.Hour))
	deleted, err := client.BulkDeleteMessages(context.Background(), 500, []Snowflake{stale}, "cleanup")
	requireNoError(t, err, "bulk delete")
	if deleted != 1 {
		t.Fatalf("deleted %d, want 1", deleted)
	}

	singles := requester.recordedByMethod(http.MethodDelete, "/messages/")
	if len(singles) != 1 {
		t.Fatalf("submitted %d single deletes, want 1", len(singles))
	}
	if singles[0].Reason != "cleanup" {
		t.Fatalf("audit reason %q not forwarded", singles[0].Reason)
	}
}

func TestBulkDeleteRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, &fakeRequester{}, time.Now())
	ids := make([]Snowflake, 101)
	for index := range ids {
		ids[index] = SnowflakeFromTime(time.Now().Add(-time.Hour)) + Snowflake(index)
	}

	if _, err := client.BulkDeleteMessages(context.Background(), 500, ids, ""); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("error %v, want ErrInvalidLimit", err)
	}
}
