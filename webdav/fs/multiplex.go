package fs

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// Multiplex composes several backends under distinct top-level prefixes
// and synthesizes a virtual root collection listing them.
//
// Grounded on spec.md §4.2.2; no direct teacher analogue exists (the
// teacher mounts exactly one FileSystem), so this is new code following
// the Backend contract and the teacher's error-sentinel style.
type Multiplex struct {
	mounts map[string]Backend
	order  []string
}

// NewMultiplex builds a Multiplex from prefix->Backend mounts. Prefixes
// are bare names with no leading or trailing slash, e.g. "vol", "home".
func NewMultiplex(mounts map[string]Backend) *Multiplex {
	m := &Multiplex{mounts: mounts}
	for prefix := range mounts {
		m.order = append(m.order, prefix)
	}
	sort.Strings(m.order)
	return m
}

// split separates the leading "/prefix" from the residual path. ok is
// false for the root itself.
func (m *Multiplex) split(urlPath string) (prefix, residual string, ok bool) {
	clean := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if clean == "" || clean == "." {
		return "", "", false
	}
	parts := strings.SplitN(clean, "/", 2)
	if len(parts) == 1 {
		return parts[0], "/", true
	}
	return parts[0], "/" + parts[1], true
}

func (m *Multiplex) backend(prefix string) (Backend, error) {
	b, ok := m.mounts[prefix]
	if !ok {
		return nil, NewError(KindNotFound, "multiplex", fmt.Errorf("no mount %q", prefix))
	}
	return b, nil
}

// BackendFor exposes which mounted Backend a path resolves under, used by
// the dispatcher to detect cross-backend MOVE/COPY (spec.md §9, Open
// Question iii: resolved as 502 Bad Gateway).
func (m *Multiplex) BackendFor(urlPath string) (Backend, bool) {
	prefix, _, ok := m.split(urlPath)
	if !ok {
		return nil, false
	}
	b, err := m.backend(prefix)
	if err != nil {
		return nil, false
	}
	return b, true
}

var epoch = time.Unix(0, 0).UTC()

func (m *Multiplex) rootProps() map[string]any {
	return map[string]any{
		"D:iscollection":    true,
		"D:resourcetype":    "<D:collection/>",
		"D:getcontentlength": int64(4096),
		"D:getlastmodified":  epoch,
		"D:lastmodified":     epoch,
		"D:creationdate":     epoch,
		"D:lastaccessed":     epoch,
		"D:displayname":      "",
		"D:name":             "",
		"D:ishidden":         false,
		"D:getetag":          `"root"`,
	}
}

func (m *Multiplex) GetProps(ctx context.Context, user, urlPath string, propnames []string) (map[string]any, error) {
	prefix, residual, ok := m.split(urlPath)
	if !ok {
		props := m.rootProps()
		if len(propnames) == 0 {
			return props, nil
		}
		filtered := make(map[string]any, len(propnames))
		for _, n := range propnames {
			if v, has := props[n]; has {
				filtered[n] = v
			}
		}
		return filtered, nil
	}
	b, err := m.backend(prefix)
	if err != nil {
		return nil, err
	}
	return b.GetProps(ctx, user, residual, propnames)
}

func (m *Multiplex) GetChildren(ctx context.Context, user, urlPath string) ([]string, error) {
	prefix, residual, ok := m.split(urlPath)
	if !ok {
		children := make([]string, 0, len(m.order))
		for _, p := range m.order {
			children = append(children, "/"+p)
		}
		return children, nil
	}
	b, err := m.backend(prefix)
	if err != nil {
		return nil, err
	}
	kids, err := b.GetChildren(ctx, user, residual)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(kids))
	for i, k := range kids {
		out[i] = "/" + prefix + k
	}
	return out, nil
}

func (m *Multiplex) GetContent(ctx context.Context, user, urlPath string, start, end int64) ([]byte, error) {
	prefix, residual, ok := m.split(urlPath)
	if !ok {
		return nil, NewError(KindForbidden, "multiplex.get_content", fmt.Errorf("root is a synthetic collection"))
	}
	b, err := m.backend(prefix)
	if err != nil {
		return nil, err
	}
	return b.GetContent(ctx, user, residual, start, end)
}

func (m *Multiplex) SetContent(ctx context.Context, user, urlPath string, data []byte, start int64) error {
	prefix, residual, ok := m.split(urlPath)
	if !ok {
		return NewError(KindForbidden, "multiplex.set_content", fmt.Errorf("root is read-only"))
	}
	b, err := m.backend(prefix)
	if err != nil {
		return err
	}
	return b.SetContent(ctx, user, residual, data, start)
}

func (m *Multiplex) Create(ctx context.Context, user, urlPath string, isCollection bool) error {
	prefix, residual, ok := m.split(urlPath)
	if !ok {
		return NewError(KindConflict, "multiplex.create", fmt.Errorf("root is read-only"))
	}
	b, err := m.backend(prefix)
	if err != nil {
		return err
	}
	return b.Create(ctx, user, residual, isCollection)
}

func (m *Multiplex) Delete(ctx context.Context, user, urlPath string) error {
	prefix, residual, ok := m.split(urlPath)
	if !ok {
		return NewError(KindForbidden, "multiplex.delete", fmt.Errorf("root is read-only"))
	}
	b, err := m.backend(prefix)
	if err != nil {
		return err
	}
	return b.Delete(ctx, user, residual)
}

func (m *Multiplex) GetUID(ctx context.Context, user, urlPath string) (string, error) {
	prefix, residual, ok := m.split(urlPath)
	if !ok {
		return "multiplex:/", nil
	}
	b, err := m.backend(prefix)
	if err != nil {
		return "", err
	}
	uid, err := b.GetUID(ctx, user, residual)
	if err != nil {
		return "", err
	}
	return prefix + ":" + uid, nil
}
