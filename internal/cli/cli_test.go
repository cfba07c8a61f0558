package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/models"
)

// backend serves /login, presence and a paged /stocks listing with
// requested symbols first.
type backend struct {
	mu       sync.Mutex
	defaults []string
}

func (b *backend) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var c struct{ Username, Password string }
		json.NewDecoder(r.Body).Decode(&c)
		if c.Username != "ayse" || c.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "user": "ayse"})
	})
	r.Post("/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/admin/online-users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["ayse"]`))
	})
	r.Get("/stocks", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		b.mu.Lock()
		all := []string{}
		seen := map[string]bool{}
		if s := q.Get("symbols"); s != "" {
			for _, sym := range strings.Split(s, ",") {
				if !seen[sym] {
					seen[sym] = true
					all = append(all, sym)
				}
			}
		}
		for _, sym := range b.defaults {
			if !seen[sym] {
				seen[sym] = true
				all = append(all, sym)
			}
		}
		b.mu.Unlock()

		start, end := (page-1)*limit, page*limit
		if start > len(all) {
			start = len(all)
		}
		if end > len(all) {
			end = len(all)
		}
		items := []models.Stock{}
		for _, sym := range all[start:end] {
			items = append(items, models.Stock{Symbol: sym, Name: sym + " A.Ş.", Price: decimal.NewFromFloat(12.5)})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": items, "has_more": end < len(all)})
	})
	return r
}

func newTestEnv(t *testing.T) string {
	t.Helper()
	b := &backend{}
	for i := 1; i <= 30; i++ {
		b.defaults = append(b.defaults, fmt.Sprintf("S%03d", i))
	}
	srv := httptest.NewServer(b.router())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`[api]
base_url = %q

[store]
path = %q

[log]
console = false
file = false
`, srv.URL, filepath.Join(dir, "ecos.db"))
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

// run executes one CLI invocation with a fresh App, like a separate process.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := NewApp()
	defer app.Close()

	cmd := NewRootCmd(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Version(t *testing.T) {
	dir := newTestEnv(t)
	out, err := run(t, dir, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q", v["version"])
	}
}

func TestCLI_LoginTrackAndList(t *testing.T) {
	dir := newTestEnv(t)

	if _, err := run(t, dir, "login", "ayse", "--password", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := run(t, dir, "whoami", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"user": "ayse"`) {
		t.Errorf("whoami = %s", out)
	}

	if _, err := run(t, dir, "track", "add", "s020.is", "s010"); err != nil {
		t.Fatalf("track add: %v", err)
	}

	out, err = run(t, dir, "stocks", "--json", "--pages", "2")
	if err != nil {
		t.Fatal(err)
	}
	var list stockListView
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(list.Tracked) != 2 || list.Tracked[0] != "S010" || list.Tracked[1] != "S020" {
		t.Errorf("tracked = %v, want [S010 S020]", list.Tracked)
	}
	if len(list.Stocks) != 30 || list.Stocks[0].Symbol != "S010" {
		t.Errorf("got %d stocks starting with %v", len(list.Stocks), list.Stocks)
	}
	if list.Page != 2 || list.HasMore {
		t.Errorf("page = %d has_more = %v", list.Page, list.HasMore)
	}

	out, err = run(t, dir, "stocks", "--csv")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.HasPrefix(lines[0], "symbol,name,price") {
		t.Errorf("csv header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "S010,") {
		t.Errorf("first csv row = %q", lines[1])
	}

	if _, err := run(t, dir, "logout"); err != nil {
		t.Fatal(err)
	}
	out, _ = run(t, dir, "whoami", "--yaml")
	if !strings.Contains(out, "authenticated: false") {
		t.Errorf("whoami after logout = %s", out)
	}
}

func TestCLI_FavoritesPersist(t *testing.T) {
	dir := newTestEnv(t)
	if _, err := run(t, dir, "login", "ayse", "--password", "secret"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, dir, "fav", "toggle", "S003"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, dir, "fav", "list", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "S003") {
		t.Errorf("fav list = %s", out)
	}
}

func TestCLI_LoginRejected(t *testing.T) {
	dir := newTestEnv(t)
	_, err := run(t, dir, "login", "ayse", "--password", "wrong")
	if !apperrors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCLI_TrackRequiresLogin(t *testing.T) {
	dir := newTestEnv(t)
	_, err := run(t, dir, "track", "list")
	if !apperrors.Is(err, apperrors.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestCLI_RejectsMalformedSymbol(t *testing.T) {
	dir := newTestEnv(t)
	_, err := run(t, dir, "track", "add", "THY;AO")
	if !apperrors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("err = %v, want ErrInputValidation", err)
	}
}

func TestCommandScope_TagsContext(t *testing.T) {
	var buf bytes.Buffer
	app := NewApp()
	app.Logger = zerolog.New(&buf)

	ctx := app.commandScope(context.Background(), "ecos stocks")
	id := logging.RequestIDFromContext(ctx)
	if id == "" {
		t.Fatal("no request id on command context")
	}

	logger := logging.FromContext(ctx)
	logger.Info().Msg("listing")

	var entry map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != id || entry["command"] != "ecos stocks" {
		t.Errorf("log entry = %v, want request_id %s and command", entry, id)
	}

	if other := logging.RequestIDFromContext(app.commandScope(context.Background(), "ecos stocks")); other == id {
		t.Error("two commands shared a request id")
	}
}
