package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const servicePage = `<!DOCTYPE html>
<html>
<head>
  <title>Premie voor renovatie | Vlaanderen.be</title>
  <style>body { color: red; }</style>
  <script>var tracking = true;</script>
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <main>
    <h1>Premie voor renovatie</h1>
    <p>De aanvraag wordt behandeld door het
       Agentschap Wonen (AW).</p>
    <ul>
      <li>Kostprijs: twintig euro</li>
      <li>Termijn: 30 dagen</li>
    </ul>
  </main>
  <footer>Contact</footer>
</body>
</html>`

func TestFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(servicePage))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "govextract-test"})
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotUA != "govextract-test" {
		t.Errorf("expected custom user agent, got %q", gotUA)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", page.StatusCode)
	}
	if page.Title != "Premie voor renovatie | Vlaanderen.be" {
		t.Errorf("unexpected title %q", page.Title)
	}

	want := "Premie voor renovatie\n" +
		"De aanvraag wordt behandeld door het Agentschap Wonen (AW).\n" +
		"Kostprijs: twintig euro\n" +
		"Termijn: 30 dagen"
	if page.Text != want {
		t.Errorf("unexpected text:\n%s", page.Text)
	}
}

func TestFetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetch_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><script>x()</script></body></html>`))
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "body fallback",
			html: `<html><body><div>Plain   text
				without blocks</div></body></html>`,
			want: "Plain text without blocks",
		},
		{
			name: "nested list not repeated",
			html: `<body><main><ul><li><p>Outer</p></li><li>Inner</li></ul></main></body>`,
			want: "Outer\nInner",
		},
		{
			name: "article root",
			html: `<body><p>Outside</p><article><p>Inside</p></article></body>`,
			want: "Inside",
		},
	}

	f := New(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ExtractText(tt.html)
			if err != nil {
				t.Fatalf("ExtractText: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	f := New(Config{})
	if f.config.Timeout == 0 || f.config.UserAgent == "" || !strings.Contains(f.config.Selector, "main") {
		t.Errorf("defaults not applied: %+v", f.config)
	}
}
