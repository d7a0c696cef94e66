package webdav

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseRequestDepth(t *testing.T) {
	cases := []struct {
		header string
		want   int
	}{
		{"", InfiniteDepth},
		{"infinity", InfiniteDepth},
		{"Infinity", InfiniteDepth},
		{"0", 0},
		{"1", 1},
		{"garbage", InfiniteDepth},
	}
	for _, c := range cases {
		r := httptest.NewRequest("PROPFIND", "/x", nil)
		if c.header != "" {
			r.Header.Set("Depth", c.header)
		} else {
			r.Header.Del("Depth")
		}
		req, err := ParseRequest(r)
		if err != nil {
			t.Fatalf("ParseRequest: %v", err)
		}
		if req.Depth != c.want {
			t.Errorf("Depth header %q: got %d, want %d", c.header, req.Depth, c.want)
		}
	}
}

func TestParseRequestOverwrite(t *testing.T) {
	r := httptest.NewRequest("COPY", "/x", nil)
	r.Header.Set("Overwrite", "T")
	req, err := ParseRequest(r)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !req.Overwrite {
		t.Fatal("Overwrite: T header should set Overwrite = true")
	}

	r2 := httptest.NewRequest("COPY", "/x", nil)
	r2.Header.Set("Overwrite", "F")
	req2, err := ParseRequest(r2)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req2.Overwrite {
		t.Fatal("Overwrite: F header should leave Overwrite = false")
	}
}

func TestParseRequestDestination(t *testing.T) {
	r := httptest.NewRequest("MOVE", "/a", nil)
	r.Header.Set("Destination", "http://example.com/b%20c")
	req, err := ParseRequest(r)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Destination != "/b c" {
		t.Fatalf("got Destination %q, want %q", req.Destination, "/b c")
	}
}

func TestParseRequestAuthorization(t *testing.T) {
	r := httptest.NewRequest("GET", "/a", nil)
	r.SetBasicAuth("alice", "secret")
	req, err := ParseRequest(r)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Username != "alice" || req.Password != "secret" {
		t.Fatalf("got user/pass %q/%q, want alice/secret", req.Username, req.Password)
	}
}

func TestParseRequestLockTokenIfOverridesLockTokenHeader(t *testing.T) {
	r := httptest.NewRequest("PUT", "/a", nil)
	r.Header.Set("Lock-Token", "<opaquelocktoken:from-lock-token>")
	r.Header.Set("If", "(<opaquelocktoken:from-if>)")
	req, err := ParseRequest(r)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.LockToken != "from-if" {
		t.Fatalf("got token %q, want %q (If header wins)", req.LockToken, "from-if")
	}
}

func TestParseRequestLockTokenFallsBackToLockTokenHeader(t *testing.T) {
	r := httptest.NewRequest("PUT", "/a", nil)
	r.Header.Set("Lock-Token", "<opaquelocktoken:only-one>")
	req, err := ParseRequest(r)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.LockToken != "only-one" {
		t.Fatalf("got token %q, want %q", req.LockToken, "only-one")
	}
}

func TestParseRequestLockOwner(t *testing.T) {
	body := `<?xml version="1.0"?><D:lockinfo xmlns:D="DAV:"><D:owner><D:href>mailto:alice@example.com</D:href></D:owner></D:lockinfo>`
	r := httptest.NewRequest("LOCK", "/a", strings.NewReader(body))
	req, err := ParseRequest(r)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.LockOwner != "mailto:alice@example.com" {
		t.Fatalf("got owner %q, want %q", req.LockOwner, "mailto:alice@example.com")
	}
}

func TestParseRequestIsExcel(t *testing.T) {
	r := httptest.NewRequest("PROPFIND", "/a", nil)
	r.Header.Set("User-Agent", "Microsoft Office Excel 2013")
	req, err := ParseRequest(r)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !req.IsExcel {
		t.Fatal("expected IsExcel true for Excel user agent")
	}

	r2 := httptest.NewRequest("PROPFIND", "/a", nil)
	r2.Header.Set("User-Agent", "curl/8.0")
	req2, err := ParseRequest(r2)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req2.IsExcel {
		t.Fatal("expected IsExcel false for non-Excel user agent")
	}
}
