package notion

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/wehubfusion/Ariadne/pkg/content"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:       server.URL,
		APIKey:        "secret",
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.True(t, sdkerrors.IsUnauthorized(err))
	assert.Equal(t, "Unauthorized: API key not found", sdkerrors.Message(err, ""))
}

func TestQueryDatabaseSendsHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/databases/db-1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultVersion, r.Header.Get("Notion-Version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"object":"list","results":[{"object":"page","id":"row-1","properties":{
			"Name":{"id":"title","type":"title","title":[{"plain_text":"Acme"}]}
		}}]}`)
	})

	records, err := client.QueryDatabase(context.Background(), "db-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "row-1", records[0].ID)
	assert.Equal(t, content.TypeTitle, records[0].Properties[0].Type)
}

func TestListBlockChildrenPassesPageSize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blocks/page-1/children", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		_, _ = io.WriteString(w, `{"results":[{"id":"b1","type":"paragraph","has_children":false,"paragraph":{"rich_text":[{"plain_text":"Hi"}]}}]}`)
	})

	blocks, err := client.ListBlockChildren(context.Background(), "page-1", 100)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hi", content.PlainText(blocks[0].Text))
}

func TestGetPropertyValue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pages/rel-1/properties/title", r.URL.Path)
		_, _ = io.WriteString(w, `{"object":"list","results":[{"object":"property_item","type":"title","title":{"plain_text":"Acme"}}],"property_item":{"id":"title","type":"title"}}`)
	})

	p, err := client.GetPropertyValue(context.Background(), "rel-1", "title")
	require.NoError(t, err)
	assert.Equal(t, "Acme", content.PlainText(p.Value.(content.TitleValue).Text))
}

func TestSearchSortsByLastEdited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "roadmap", gjson.GetBytes(body, "query").Str)
		assert.Equal(t, "ascending", gjson.GetBytes(body, "sort.direction").Str)
		assert.Equal(t, "last_edited_time", gjson.GetBytes(body, "sort.timestamp").Str)
		_, _ = io.WriteString(w, `{"results":[{"object":"page","id":"p1"},{"object":"database","id":"d1"}]}`)
	})

	results, err := client.Search(context.Background(), "roadmap")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, content.KindDatabase, results[1].Object)
}

func TestRetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`)
			return
		}
		_, _ = io.WriteString(w, `{"object":"page","id":"p1","properties":{}}`)
	})

	record, err := client.GetRecord(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", record.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitExhaustion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetRecord(context.Background(), "p1")
	assert.True(t, sdkerrors.IsRateLimited(err))
}

func TestRetriesServerErrorsThenFails(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetRecord(context.Background(), "p1")
	assert.ErrorIs(t, err, sdkerrors.ErrUpstream)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"object":"error","status":404,"code":"object_not_found","message":"Could not find page"}`)
	})

	_, err := client.GetRecord(context.Background(), "missing")
	assert.True(t, sdkerrors.IsNotFound(err))
	assert.Equal(t, "Could not find page", sdkerrors.Message(err, ""))
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnauthorizedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`)
	})

	_, err := client.Search(context.Background(), "x")
	assert.True(t, sdkerrors.IsUnauthorized(err))
}

func TestMalformedBodyIsReported(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := client.ListBlockChildren(context.Background(), "p1", 10)
	assert.ErrorIs(t, err, sdkerrors.ErrMalformedResponse)
}
