package confluence

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

const pageJSON = `{
	"id": "12345",
	"title": "Deploy Guide",
	"body": {"storage": {"value": "<h1>Deploying</h1><p>Run the pipeline.</p>"}},
	"version": {"when": "2026-02-01T12:00:00.000Z"},
	"space": {"key": "ENG"},
	"_links": {"webui": "/spaces/ENG/pages/12345"}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:           server.URL,
		Token:             "test-token",
		RequestsPerSecond: 10000,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiredConfig(t *testing.T) {
	_, err := NewClient(Config{Token: "t"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewClient(Config{BaseURL: "https://wiki.example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetPage(t *testing.T) {
	var gotPath, gotExpand, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotExpand = r.URL.Query().Get("expand")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, pageJSON)
	})

	doc, err := client.GetPage(context.Background(), "12345")
	require.NoError(t, err)

	assert.Equal(t, "/rest/api/content/12345", gotPath)
	assert.Equal(t, "body.storage,version,space", gotExpand)
	assert.Equal(t, "Bearer test-token", gotAuth)

	assert.Equal(t, "12345", doc.ID)
	assert.Equal(t, "Deploy Guide", doc.Title)
	assert.Equal(t, "ENG", doc.SpaceKey)
	assert.Contains(t, doc.URL, "/spaces/ENG/pages/12345")
	assert.Equal(t, "Deploying\n\nRun the pipeline.", doc.Text)
	assert.Equal(t, 2026, doc.LastModified.Year())
}

func TestGetPage_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetPage(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPage_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetPage(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetPage_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetPage(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestGetPage_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetPage(context.Background(), "12345")
	require.Error(t, err)
	// Bad credentials are permanent, not a transient upstream condition.
	assert.NotErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.Contains(t, err.Error(), "credentials")
}

func TestListSpacePages(t *testing.T) {
	var gotQuery map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprintf(w, `{"results": [%s]}`, pageJSON)
	})

	docs, err := client.ListSpacePages(context.Background(), "ENG", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"ENG"}, gotQuery["spaceKey"])
	assert.Equal(t, []string{"5"}, gotQuery["limit"])
	require.Len(t, docs, 1)
	assert.Equal(t, "Deploy Guide", docs[0].Title)
}

func TestListSpacePages_LimitClamped(t *testing.T) {
	var gotLimit string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `{"results": []}`)
	})

	_, err := client.ListSpacePages(context.Background(), "ENG", 5000)
	require.NoError(t, err)
	assert.Equal(t, "100", gotLimit)

	_, err = client.ListSpacePages(context.Background(), "ENG", 0)
	require.NoError(t, err)
	assert.Equal(t, "10", gotLimit)
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"results": []}`)
	})

	assert.NoError(t, client.Ping(context.Background()))
}

func TestPing_Unreachable(t *testing.T) {
	client, err := NewClient(Config{
		BaseURL: "http://127.0.0.1:1",
		Token:   "t",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, client.Ping(context.Background()), domain.ErrSourceUnavailable)
}
