package observe

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestTreeLines_EmptySnapshot(t *testing.T) {
	got := Empty().TreeLines()
	if !reflect.DeepEqual(got, []string{"/"}) {
		t.Fatalf("TreeLines() = %q, want [\"/\"]", got)
	}
}

func TestTreeLines_RendersPagesAndExchanges(t *testing.T) {
	snap := New([]Page{
		{URL: "https://target.test/login", Exchanges: []Exchange{
			NewExchange("get", "https://target.test/login"),
			NewExchange("POST", "https://target.test/api/auth?next=/"),
		}},
		{URL: "https://target.test", Exchanges: []Exchange{
			NewExchange("", ""),
		}},
	})

	want := []string{
		"├─ /login",
		"│  ├─ GET /login",
		"│  └─ POST /api/auth",
		"└─ /",
		"   └─ GET /",
	}
	if got := snap.TreeLines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("TreeLines() =\n%q\nwant\n%q", got, want)
	}
}

func TestTreeLines_UnparseableURLFallsBackToRaw(t *testing.T) {
	snap := New([]Page{
		{URL: "not a url", Exchanges: []Exchange{NewExchange("GET", "/relative/path")}},
		{URL: "http://[::1", Exchanges: nil},
	})
	want := []string{
		"├─ not a url",
		"│  └─ GET /relative/path",
		"└─ http://[::1",
	}
	if got := snap.TreeLines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("TreeLines() = %q, want %q", got, want)
	}
}

func TestDisplayPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"   ", "/"},
		{"https://a.test", "/"},
		{"https://a.test/", "/"},
		{"https://a.test/x/y?q=1#frag", "/x/y"},
		{"/already/a/path", "/already/a/path"},
		{"mailto:someone", "mailto:someone"},
	}
	for _, tc := range cases {
		if got := displayPath(tc.in); got != tc.want {
			t.Fatalf("displayPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestView_JSONShape(t *testing.T) {
	snap := New([]Page{{URL: "https://a.test/x", Exchanges: []Exchange{NewExchange("GET", "")}}})
	data, err := json.Marshal(snap.View())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded["siteTreeLines"]; !ok {
		t.Fatalf("view JSON %s missing siteTreeLines", data)
	}
	stats, ok := decoded["spiderStats"].(map[string]any)
	if !ok || stats["pages"] != float64(1) || stats["requests"] != float64(1) {
		t.Fatalf("spiderStats = %#v, want pages=1 requests=1", decoded["spiderStats"])
	}
}

func TestView_CloneIsIndependent(t *testing.T) {
	v := View{TreeLines: []string{"/"}, Stats: Stats{PageCount: 1}}
	dup := v.Clone()
	dup.TreeLines[0] = "changed"
	if v.TreeLines[0] != "/" {
		t.Fatalf("Clone shares TreeLines backing array")
	}
}
