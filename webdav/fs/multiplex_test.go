package fs

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestMultiplex(t *testing.T) (*Multiplex, *Directory, *Directory) {
	t.Helper()
	volDir, err := NewDirectory(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDirectory vol: %v", err)
	}
	homeDir, err := NewDirectory(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDirectory home: %v", err)
	}
	m := NewMultiplex(map[string]Backend{
		"vol":  volDir,
		"home": homeDir,
	})
	return m, volDir, homeDir
}

func TestMultiplexRootListsMounts(t *testing.T) {
	m, _, _ := newTestMultiplex(t)
	ctx := context.Background()

	props, err := m.GetProps(ctx, "alice", "/", nil)
	if err != nil {
		t.Fatalf("GetProps root: %v", err)
	}
	if iscol, _ := props["D:iscollection"].(bool); !iscol {
		t.Fatal("root must report as a collection")
	}

	children, err := m.GetChildren(ctx, "alice", "/")
	if err != nil {
		t.Fatalf("GetChildren root: %v", err)
	}
	want := map[string]bool{"/home": true, "/vol": true}
	if len(children) != len(want) {
		t.Fatalf("got children %v, want keys of %v", children, want)
	}
	for _, c := range children {
		if !want[c] {
			t.Fatalf("unexpected root child %q", c)
		}
	}
}

func TestMultiplexDelegatesByPrefix(t *testing.T) {
	m, _, _ := newTestMultiplex(t)
	ctx := context.Background()

	if err := m.Create(ctx, "alice", "/vol/note.txt", false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.SetContent(ctx, "alice", "/vol/note.txt", []byte("hi"), 0); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	got, err := m.GetContent(ctx, "alice", "/vol/note.txt", -1, -1)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if string(got) != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}

	if _, err := m.GetProps(ctx, "alice", "/home/note.txt", nil); KindOf(err) != KindNotFound {
		t.Fatalf("got Kind %v, want KindNotFound for a path under a different mount", KindOf(err))
	}
}

func TestMultiplexUnknownPrefixIsNotFound(t *testing.T) {
	m, _, _ := newTestMultiplex(t)
	ctx := context.Background()

	if _, err := m.GetProps(ctx, "alice", "/nope/x", nil); KindOf(err) != KindNotFound {
		t.Fatalf("got Kind %v, want KindNotFound for unknown mount prefix", KindOf(err))
	}
}

func TestMultiplexBackendForDetectsCrossBackend(t *testing.T) {
	m, volDir, homeDir := newTestMultiplex(t)

	volBackend, ok := m.BackendFor("/vol/a.txt")
	if !ok {
		t.Fatal("BackendFor /vol/a.txt: not ok")
	}
	homeBackend, ok := m.BackendFor("/home/a.txt")
	if !ok {
		t.Fatal("BackendFor /home/a.txt: not ok")
	}
	if volBackend != Backend(volDir) {
		t.Fatal("vol path did not resolve to the vol Directory backend")
	}
	if homeBackend != Backend(homeDir) {
		t.Fatal("home path did not resolve to the home Directory backend")
	}
	if volBackend == homeBackend {
		t.Fatal("expected distinct backends for /vol and /home")
	}
}

func TestMultiplexGetUIDPrefixesMountName(t *testing.T) {
	m, _, _ := newTestMultiplex(t)
	ctx := context.Background()

	if err := m.Create(ctx, "alice", "/vol/f", false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	uid, err := m.GetUID(ctx, "alice", "/vol/f")
	if err != nil {
		t.Fatalf("GetUID: %v", err)
	}
	if len(uid) < 4 || uid[:4] != "vol:" {
		t.Fatalf("got uid %q, want it prefixed with %q", uid, "vol:")
	}
}
