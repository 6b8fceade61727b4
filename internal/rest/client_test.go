package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"harmony/pkg/harmony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSetsHeadersAndDecodesResponse(t *testing.T) {
	t.Parallel()

	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen.Store(request.Header.Clone())
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"id":"42","channel_id":"7"}`))
	}))
	defer server.Close()

	client := New("secret-token", WithBaseURL(server.URL))

	var message harmony.RawMessage
	err := client.Do(context.Background(), harmony.Request{
		Method:    http.MethodGet,
		Route:     "/channels/7/messages/42",
		NeedsAuth: true,
		Reason:    "spring cleaning",
	}, &message)
	require.NoError(t, err)

	assert.Equal(t, harmony.Snowflake(42), message.ID)
	assert.Equal(t, harmony.Snowflake(7), message.ChannelID)

	headers := seen.Load().(http.Header)
	assert.Equal(t, "Bot secret-token", headers.Get("Authorization"))
	assert.Equal(t, "spring%20cleaning", headers.Get("X-Audit-Log-Reason"))
	assert.Equal(t, userAgent, headers.Get("User-Agent"))
}

func TestDoOmitsAuthWhenNotRequired(t *testing.T) {
	t.Parallel()

	var authorization atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		authorization.Store(request.Header.Get("Authorization"))
		writer.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New("secret-token", WithBaseURL(server.URL))
	err := client.Do(context.Background(), harmony.Request{Method: http.MethodGet, Route: "/gateway"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", authorization.Load())
}

func TestDoRetriesRateLimitThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if calls.Add(1) == 1 {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusTooManyRequests)
			_, _ = writer.Write([]byte(`{"message":"rate limited","retry_after":0.01}`))
			return
		}
		writer.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New("token", WithBaseURL(server.URL))
	err := client.Do(context.Background(), harmony.Request{
		Method:    http.MethodDelete,
		Route:     "/channels/7/messages/42",
		NeedsAuth: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestDoDoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		calls.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte(`{"message":"unknown message","code":10008}`))
	}))
	defer server.Close()

	client := New("token", WithBaseURL(server.URL))
	err := client.Do(context.Background(), harmony.Request{
		Method:    http.MethodDelete,
		Route:     "/channels/7/messages/42",
		NeedsAuth: true,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())

	apiErr, ok := AsAPIError(err)
	require.True(t, ok, "expected a structured *APIError, got %v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, 10008, apiErr.Code)
	assert.Equal(t, "unknown message", apiErr.Message)
	assert.False(t, apiErr.Temporary())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		calls.Add(1)
		writer.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New("token", WithBaseURL(server.URL), WithMaxRetries(1))
	err := client.Do(context.Background(), harmony.Request{
		Method: http.MethodGet, Route: "/channels/7/messages", NeedsAuth: true,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, int64(2), calls.Load())

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.Temporary())
}

func TestDoSendsJSONBody(t *testing.T) {
	t.Parallel()

	var body atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		payload, _ := io.ReadAll(request.Body)
		body.Store(string(payload))
		writer.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New("token", WithBaseURL(server.URL))
	err := client.Do(context.Background(), harmony.Request{
		Method:    http.MethodPost,
		Route:     "/channels/7/messages/bulk-delete",
		NeedsAuth: true,
		Body:      map[string][]string{"messages": {"1", "2"}},
	}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":["1","2"]}`, body.Load().(string))
}
