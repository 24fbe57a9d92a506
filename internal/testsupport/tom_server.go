package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeTOM is an httptest server that imitates the parts of the DESC TOM the
// client uses: the Django login form, gethottransients, and runsqlquery.
type FakeTOM struct {
	Server   *httptest.Server
	Username string
	Password string

	Hot     []map[string]any
	Static  []map[string]any
	Sources []map[string]any
	Truth   []map[string]any

	mu         sync.Mutex
	logins     int
	queries    []string
	hotBodies  []map[string]any
	csrfToken  string
	sessionKey string
}

// NewFakeTOM starts a fake TOM accepting the given credentials.
func NewFakeTOM(t testing.TB, username, password string) *FakeTOM {
	t.Helper()
	f := &FakeTOM{Username: username, Password: password, csrfToken: "token-initial"}
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/login/", f.handleLogin)
	mux.HandleFunc("/elasticc2/gethottransients", f.requireSession(f.handleHot))
	mux.HandleFunc("/db/runsqlquery/", f.requireSession(f.handleSQL))
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeTOM) URL() string {
	return f.Server.URL
}

// Logins reports how many successful logins happened.
func (f *FakeTOM) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

// Queries returns the SQL statements received so far.
func (f *FakeTOM) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// HotRequests returns the decoded gethottransients request bodies.
func (f *FakeTOM) HotRequests() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.hotBodies...)
}

func (f *FakeTOM) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: f.csrfToken, Path: "/"})
		_, _ = w.Write([]byte("<form>login</form>"))
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cookie, err := r.Cookie("csrftoken")
		if err != nil || cookie.Value != f.csrfToken || r.PostForm.Get("csrfmiddlewaretoken") != f.csrfToken {
			http.Error(w, "CSRF verification failed", http.StatusForbidden)
			return
		}
		if r.PostForm.Get("username") != f.Username || r.PostForm.Get("password") != f.Password {
			_, _ = w.Write([]byte("<p>Please enter a correct username and password.</p>"))
			return
		}
		f.logins++
		f.sessionKey = fmt.Sprintf("session-%d", f.logins)
		f.csrfToken = fmt.Sprintf("token-rotated-%d", f.logins)
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: f.sessionKey, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: f.csrfToken, Path: "/"})
		_, _ = w.Write([]byte("<p>Welcome</p>"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *FakeTOM) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		session, token := f.sessionKey, f.csrfToken
		f.mu.Unlock()
		cookie, err := r.Cookie("sessionid")
		if err != nil || session == "" || cookie.Value != session {
			http.Error(w, "not logged in", http.StatusForbidden)
			return
		}
		if r.Header.Get("X-CSRFToken") != token {
			http.Error(w, "CSRF token missing or incorrect", http.StatusForbidden)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (f *FakeTOM) handleHot(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.hotBodies = append(f.hotBodies, body)
	hot := f.Hot
	f.mu.Unlock()
	writeJSON(w, map[string]any{"diaobject": nonNil(hot)})
}

func (f *FakeTOM) handleSQL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query   string         `json:"query"`
		Subdict map[string]any `json:"subdict"`
	}
	// UseNumber keeps large ids out of float formatting when matching rows.
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.queries = append(f.queries, body.Query)
	f.mu.Unlock()

	var table []map[string]any
	switch {
	case strings.Contains(body.Query, "FAIL"):
		writeJSON(w, map[string]any{"status": "error", "error": "syntax error at or near \"FAIL\""})
		return
	case strings.Contains(body.Query, "elasticc2_ppdbdiaobject"):
		table = f.Static
	case strings.Contains(body.Query, "elasticc2_ppdbdiasource"):
		table = f.Sources
	case strings.Contains(body.Query, "elasticc2_diaobjecttruth"):
		table = f.Truth
	}

	rows := table
	if rawIDs, ok := body.Subdict["ids"].([]any); ok {
		want := make(map[string]struct{}, len(rawIDs))
		for _, id := range rawIDs {
			want[fmt.Sprint(id)] = struct{}{}
		}
		rows = nil
		for _, row := range table {
			if _, ok := want[fmt.Sprint(row["diaobject_id"])]; ok {
				rows = append(rows, row)
			}
		}
	}
	writeJSON(w, map[string]any{"status": "ok", "rows": nonNil(rows)})
}

func nonNil(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
