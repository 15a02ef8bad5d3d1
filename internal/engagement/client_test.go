package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/five82/scout/internal/observe"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultBaseURL {
		t.Fatalf("url = %q, want %q", u.String(), DefaultBaseURL)
	}

	u, err = parseBaseURL("example.com:1234/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "example.com:1234" {
		t.Fatalf("url = %q, want http://example.com:1234", u.String())
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("http://"); err == nil {
		t.Fatal("parseBaseURL(http://) should fail without host")
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_FetchPageData(t *testing.T) {
	t.Parallel()

	var gotPath, gotUserAgent string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"page_data":[{"url":"http://t/","http_msgs":[{"request":{"method":"GET","url":"http://t/"},"response":{"status":200}}]}]}`)
	})

	snap, err := c.FetchPageData(testContext(t), "eng 1")
	if err != nil {
		t.Fatalf("FetchPageData returned error: %v", err)
	}
	if gotPath != "/engagement/eng%201/page-data" {
		t.Fatalf("path = %q, want /engagement/eng%%201/page-data", gotPath)
	}
	if gotUserAgent != defaultUserAgent {
		t.Fatalf("User-Agent = %q, want %q", gotUserAgent, defaultUserAgent)
	}
	if stats := snap.Stats(); stats.PageCount != 1 || stats.ExchangeCount != 1 {
		t.Fatalf("stats = %+v, want 1/1", stats)
	}
}

func TestClient_FetchPageDataMalformedBodyIsEmpty(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})
	snap, err := c.FetchPageData(testContext(t), "e")
	if err != nil {
		t.Fatalf("FetchPageData returned error: %v", err)
	}
	if !snap.IsEmpty() {
		t.Fatalf("snapshot = %d pages, want empty", snap.Len())
	}
}

func TestClient_RequiresEngagementID(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.FetchPageData(context.Background(), "  "); err == nil {
		t.Fatal("FetchPageData with empty id should fail")
	}
	if _, err := c.GetEngagement(context.Background(), ""); err == nil {
		t.Fatal("GetEngagement with empty id should fail")
	}
}

func TestClient_ErrorDetail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		notFound bool
	}{
		{name: "string detail", status: 404, body: `{"detail":"Engagement not found"}`, want: "Engagement not found", notFound: true},
		{name: "structured detail", status: 422, body: `{"detail": [ {"loc": ["body","name"]} ]}`, want: `[{"loc":["body","name"]}]`},
		{name: "no detail", status: 500, body: `oops`, want: "api /engagement/e returned status 500"},
		{name: "null detail", status: 503, body: `{"detail":null}`, want: "api /engagement/e returned status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.GetEngagement(testContext(t), "e")
			if err == nil {
				t.Fatal("GetEngagement should fail")
			}
			if err.Error() != tt.want {
				t.Fatalf("error = %q, want %q", err.Error(), tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
				t.Fatalf("error %T should be *APIError with status %d", err, tt.status)
			}
			if IsNotFound(err) != tt.notFound {
				t.Fatalf("IsNotFound = %v, want %v", IsNotFound(err), tt.notFound)
			}
		})
	}
}

func TestClient_CreateAndMerge(t *testing.T) {
	t.Parallel()

	var created CreateRequest
	var merged MergeRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad content type", http.StatusUnsupportedMediaType)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/engagement/":
			_ = json.NewDecoder(r.Body).Decode(&created)
			_ = json.NewEncoder(w).Encode(Engagement{ID: "eng-1", Name: created.Name, BaseURL: created.BaseURL})
		case r.Method == http.MethodPost && r.URL.Path == "/engagement/eng-1/page-data":
			_ = json.NewDecoder(r.Body).Decode(&merged)
			_ = json.NewEncoder(w).Encode(observe.PageDataResponse{PageData: merged.Delta})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := testContext(t)

	eng, err := c.CreateEngagement(ctx, CreateRequest{Name: "demo", BaseURL: "http://target"})
	if err != nil {
		t.Fatalf("CreateEngagement returned error: %v", err)
	}
	if eng.ID != "eng-1" || created.Name != "demo" {
		t.Fatalf("engagement = %#v (sent %#v), want id eng-1 name demo", eng, created)
	}

	delta := observe.Delta{{Page: "http://target/", Exchanges: []observe.Exchange{observe.NewExchange("GET", "http://target/")}}}
	snap, err := c.MergePageData(ctx, "eng-1", MergeRequest{AgentID: "agent", Delta: DeltaPages(delta)})
	if err != nil {
		t.Fatalf("MergePageData returned error: %v", err)
	}
	if merged.AgentID != "agent" || len(merged.Delta) != 1 {
		t.Fatalf("merge request = %#v, want agent with one page", merged)
	}
	if snap.Len() != 1 || snap.Pages()[0].URL != "http://target/" {
		t.Fatalf("merged snapshot = %#v, want one page", snap.Pages())
	}
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	healthClient := func(status string) *Client {
		return newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(HealthResponse{Status: status})
		})
	}

	if err := healthClient("healthy").Health(testContext(t)); err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	err := healthClient("degraded").Health(testContext(t))
	if err == nil || !strings.Contains(err.Error(), "degraded") {
		t.Fatalf("Health error = %v, want unhealthy status", err)
	}
}

func TestClient_NilReceiver(t *testing.T) {
	var c *Client
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("nil client should error")
	}
	if _, err := c.FetchPageData(context.Background(), "e"); err == nil {
		t.Fatal("nil client should error")
	}
}
