package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/scout/internal/engagement"
	"github.com/five82/scout/internal/observe"
)

func newBackend(t *testing.T) (*Server, *engagement.Client) {
	t.Helper()
	srv := New(nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client, err := engagement.NewClient(ts.URL)
	require.NoError(t, err)
	return srv, client
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func pageOf(url string, methods ...string) observe.Page {
	ex := make([]observe.Exchange, len(methods))
	for i, m := range methods {
		ex[i] = observe.NewExchange(m, url)
	}
	return observe.Page{URL: url, Exchanges: ex}
}

func TestServer_HealthAndCreate(t *testing.T) {
	srv, client := newBackend(t)
	ctx := ctxWithTimeout(t)

	require.NoError(t, client.Health(ctx))

	created, err := client.CreateEngagement(ctx, engagement.CreateRequest{Name: "demo", BaseURL: "http://target"})
	require.NoError(t, err)
	assert.Len(t, created.ID, 36, "ids are uuids")
	assert.True(t, created.DomainOwnershipVerified)
	assert.Empty(t, created.PageData)

	got, err := client.GetEngagement(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, []string{created.ID}, srv.IDs())
}

func TestServer_CreateValidates(t *testing.T) {
	_, client := newBackend(t)
	_, err := client.CreateEngagement(ctxWithTimeout(t), engagement.CreateRequest{Name: "demo"})
	require.Error(t, err)
	assert.Equal(t, "name and base_url are required", err.Error())
}

func TestServer_UnknownEngagementIsNotFound(t *testing.T) {
	_, client := newBackend(t)
	_, err := client.FetchPageData(ctxWithTimeout(t), "missing")
	require.Error(t, err)
	assert.True(t, engagement.IsNotFound(err))
	assert.Equal(t, "Engagement not found", err.Error())
}

func TestServer_MergeAppendsByPage(t *testing.T) {
	srv, client := newBackend(t)
	ctx := ctxWithTimeout(t)
	srv.Ensure("eng", engagement.CreateRequest{Name: "demo", BaseURL: "http://t"})

	_, err := client.MergePageData(ctx, "eng", engagement.MergeRequest{
		AgentID: "agent",
		Delta:   []observe.Page{pageOf("http://t/", "GET")},
	})
	require.NoError(t, err)

	merged, err := client.MergePageData(ctx, "eng", engagement.MergeRequest{
		AgentID: "agent",
		Delta:   []observe.Page{pageOf("http://t/login", "GET"), pageOf("http://t/", "POST")},
	})
	require.NoError(t, err)

	pages := merged.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, "http://t/", pages[0].URL)
	require.Len(t, pages[0].Exchanges, 2)
	assert.Equal(t, "POST", pages[0].Exchanges[1].Method())
	assert.Equal(t, "http://t/login", pages[1].URL)

	fetched, err := client.FetchPageData(ctx, "eng")
	require.NoError(t, err)
	assert.Equal(t, merged.Stats(), fetched.Stats())

	eng, err := client.GetEngagement(ctx, "eng")
	require.NoError(t, err)
	assert.Len(t, eng.PageData, 2)
}

func TestServer_ReadsAreCopies(t *testing.T) {
	srv := New(nil)
	srv.Ensure("eng", engagement.CreateRequest{Name: "demo", BaseURL: "http://t"})
	_, err := srv.Merge("eng", []observe.Page{pageOf("http://t/", "GET")})
	require.NoError(t, err)

	snap, err := srv.PageData("eng")
	require.NoError(t, err)
	pages := snap.Pages()
	pages[0].Exchanges = append(pages[0].Exchanges, observe.NewExchange("GET", ""))

	again, err := srv.PageData("eng")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Stats().ExchangeCount)
}

func TestServer_FeedMergesOnlyNewMaterial(t *testing.T) {
	srv := New(nil)
	srv.Ensure("eng", engagement.CreateRequest{Name: "demo", BaseURL: "http://t"})

	first := observe.New([]observe.Page{pageOf("http://t/", "GET")})
	delta, err := srv.Feed("eng", first)
	require.NoError(t, err)
	assert.Equal(t, 1, delta.ExchangeCount())

	delta, err = srv.Feed("eng", first)
	require.NoError(t, err)
	assert.Nil(t, delta)

	second := observe.New([]observe.Page{pageOf("http://t/", "GET", "GET"), pageOf("http://t/a", "GET")})
	delta, err = srv.Feed("eng", second)
	require.NoError(t, err)
	assert.Equal(t, 2, delta.ExchangeCount())

	snap, err := srv.PageData("eng")
	require.NoError(t, err)
	assert.Equal(t, observe.Stats{PageCount: 2, ExchangeCount: 3}, snap.Stats())

	_, err = srv.Feed("missing", first)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServer_EnsureKeepsExisting(t *testing.T) {
	srv := New(nil)
	a := srv.Ensure("eng", engagement.CreateRequest{Name: "first", BaseURL: "http://t"})
	b := srv.Ensure("eng", engagement.CreateRequest{Name: "second", BaseURL: "http://t"})
	assert.Equal(t, a.CreatedAt, b.CreatedAt)
	assert.Equal(t, "first", b.Name)
}

func TestServer_RejectsMalformedMerge(t *testing.T) {
	srv := New(nil)
	srv.Ensure("eng", engagement.CreateRequest{Name: "demo", BaseURL: "http://t"})

	req := httptest.NewRequest(http.MethodPost, "/engagement/eng/page-data", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"detail":"invalid page-data payload"}`, rec.Body.String())
}
