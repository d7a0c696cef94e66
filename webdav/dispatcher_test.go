package webdav

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coredav/webdavd/webdav/auth"
	"github.com/coredav/webdavd/webdav/fs"
	"github.com/rs/zerolog"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := fs.NewDirectory(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	authn := auth.NewStatic(map[string]string{"alice": "secret"})
	return NewDispatcher(d, authn, zerolog.Nop())
}

func doReq(t *testing.T, disp *Dispatcher, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.SetBasicAuth("alice", "secret")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	disp.ServeHTTP(w, r)
	return w
}

func TestDispatcherRejectsUnauthenticated(t *testing.T) {
	disp := newTestDispatcher(t)
	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	disp.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestDispatcherOptionsAdvertisesClass2(t *testing.T) {
	disp := newTestDispatcher(t)
	r := httptest.NewRequest("OPTIONS", "/", nil)
	w := httptest.NewRecorder()
	disp.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	if w.Header().Get("DAV") != "1, 2" {
		t.Fatalf("got DAV header %q, want %q", w.Header().Get("DAV"), "1, 2")
	}
}

func TestDispatcherPutThenGetRoundTrip(t *testing.T) {
	disp := newTestDispatcher(t)

	w := doReq(t, disp, "PUT", "/a.txt", "hello world", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT new resource: got %d, want 201", w.Code)
	}

	w2 := doReq(t, disp, "PUT", "/a.txt", "overwritten", nil)
	if w2.Code != http.StatusNoContent {
		t.Fatalf("PUT existing resource: got %d, want 204", w2.Code)
	}

	w3 := doReq(t, disp, "GET", "/a.txt", "", nil)
	if w3.Code != http.StatusOK {
		t.Fatalf("GET: got %d, want 200", w3.Code)
	}
	if w3.Body.String() != "overwritten" {
		t.Fatalf("GET body: got %q, want %q", w3.Body.String(), "overwritten")
	}
}

func TestDispatcherMkcolDeleteGone(t *testing.T) {
	disp := newTestDispatcher(t)

	w := doReq(t, disp, "MKCOL", "/dir", "", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("MKCOL: got %d, want 201", w.Code)
	}

	w2 := doReq(t, disp, "DELETE", "/dir", "", nil)
	if w2.Code != http.StatusNoContent {
		t.Fatalf("DELETE: got %d, want 204", w2.Code)
	}

	w3 := doReq(t, disp, "GET", "/dir", "", nil)
	if w3.Code != http.StatusNotFound {
		t.Fatalf("GET after delete: got %d, want 404", w3.Code)
	}
}

func TestDispatcherLockThenPutWithoutTokenIsLocked(t *testing.T) {
	disp := newTestDispatcher(t)

	lockBody := `<?xml version="1.0"?><D:lockinfo xmlns:D="DAV:"><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype><D:owner><D:href>mailto:alice@example.com</D:href></D:owner></D:lockinfo>`
	w := doReq(t, disp, "LOCK", "/locked.txt", lockBody, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("LOCK: got %d, want 200", w.Code)
	}
	token := w.Header().Get("Lock-Token")
	if token == "" {
		t.Fatal("LOCK response missing Lock-Token header")
	}

	w2 := doReq(t, disp, "PUT", "/locked.txt", "data", nil)
	if w2.Code != http.StatusLocked {
		t.Fatalf("PUT without token: got %d, want 423", w2.Code)
	}

	w3 := doReq(t, disp, "PUT", "/locked.txt", "data", map[string]string{"Lock-Token": token})
	if w3.Code != http.StatusNoContent && w3.Code != http.StatusCreated {
		t.Fatalf("PUT with token: got %d, want 201/204", w3.Code)
	}

	w4 := doReq(t, disp, "UNLOCK", "/locked.txt", "", map[string]string{"Lock-Token": token})
	if w4.Code != http.StatusOK {
		t.Fatalf("UNLOCK: got %d, want 200", w4.Code)
	}
}

func TestDispatcherLockTwiceConflicts(t *testing.T) {
	disp := newTestDispatcher(t)
	lockBody := `<?xml version="1.0"?><D:lockinfo xmlns:D="DAV:"><D:owner><D:href>mailto:a@example.com</D:href></D:owner></D:lockinfo>`

	w := doReq(t, disp, "LOCK", "/x.txt", lockBody, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first LOCK: got %d, want 200", w.Code)
	}
	w2 := doReq(t, disp, "LOCK", "/x.txt", lockBody, nil)
	if w2.Code != http.StatusConflict {
		t.Fatalf("second LOCK: got %d, want 409", w2.Code)
	}
}

func TestDispatcherRejectsSharedLock(t *testing.T) {
	disp := newTestDispatcher(t)
	lockBody := `<?xml version="1.0"?><D:lockinfo xmlns:D="DAV:"><D:lockscope><D:shared/></D:lockscope><D:locktype><D:write/></D:locktype><D:owner><D:href>mailto:a@example.com</D:href></D:owner></D:lockinfo>`

	w := doReq(t, disp, "LOCK", "/x.txt", lockBody, nil)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("shared LOCK: got %d, want 415", w.Code)
	}
}

func TestDispatcherCopyAndMove(t *testing.T) {
	disp := newTestDispatcher(t)

	doReq(t, disp, "PUT", "/src.txt", "payload", nil)

	wc := doReq(t, disp, "COPY", "/src.txt", "", map[string]string{"Destination": "/copy.txt"})
	if wc.Code != http.StatusCreated {
		t.Fatalf("COPY: got %d, want 201", wc.Code)
	}
	wg := doReq(t, disp, "GET", "/copy.txt", "", nil)
	if wg.Code != http.StatusOK || wg.Body.String() != "payload" {
		t.Fatalf("GET copy: got %d %q", wg.Code, wg.Body.String())
	}
	// source must still exist after COPY
	if w := doReq(t, disp, "GET", "/src.txt", "", nil); w.Code != http.StatusOK {
		t.Fatalf("source missing after COPY: got %d", w.Code)
	}

	wm := doReq(t, disp, "MOVE", "/src.txt", "", map[string]string{"Destination": "/moved.txt"})
	if wm.Code != http.StatusNoContent {
		t.Fatalf("MOVE: got %d, want 204", wm.Code)
	}
	if w := doReq(t, disp, "GET", "/src.txt", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("source should be gone after MOVE: got %d", w.Code)
	}
	if w := doReq(t, disp, "GET", "/moved.txt", "", nil); w.Code != http.StatusOK {
		t.Fatalf("destination missing after MOVE: got %d", w.Code)
	}
}

func TestDispatcherPropfindDepthZeroReturnsOnlySelf(t *testing.T) {
	disp := newTestDispatcher(t)
	doReq(t, disp, "MKCOL", "/dir", "", nil)
	doReq(t, disp, "PUT", "/dir/child.txt", "x", nil)

	w := doReq(t, disp, "PROPFIND", "/dir", "", map[string]string{"Depth": "0"})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND depth 0: got %d, want 207", w.Code)
	}
	if strings.Count(w.Body.String(), "<D:response>") != 1 {
		t.Fatalf("PROPFIND depth 0 body contained more than one response entry:\n%s", w.Body.String())
	}
}

func TestDispatcherPropfindDepthOneListsChildren(t *testing.T) {
	disp := newTestDispatcher(t)
	doReq(t, disp, "MKCOL", "/dir", "", nil)
	doReq(t, disp, "PUT", "/dir/child.txt", "x", nil)

	w := doReq(t, disp, "PROPFIND", "/dir", "", map[string]string{"Depth": "1"})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND depth 1: got %d, want 207", w.Code)
	}
	if !strings.Contains(w.Body.String(), "child.txt") {
		t.Fatalf("PROPFIND depth 1 body missing child entry:\n%s", w.Body.String())
	}
}
