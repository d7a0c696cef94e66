package webdav

import (
	"context"

	"github.com/coredav/webdavd/webdav/fs"
)

// propfindEntry is one resource the PROPFIND engine collected, ready for
// rendering.
type propfindEntry struct {
	Path  string
	Props map[string]any
	Lock  *Lock
}

// propfind performs the bounded breadth-first traversal spec.md §4.5
// describes, rooted at rootPath. depth is already normalized by
// ParseRequest (InfiniteDepth stands in for "infinity", capped at 32
// levels per TESTABLE PROPERTY #11).
//
// Grounded on original_source/orbit-webdavd.py's do_PROPFIND
// (resqueue/depthqueue while-loop), not on
// webdavdlib/filesystems.py's recursive propfind variant, since the
// iterative form maps directly onto spec.md §4.5's numbered steps.
func (d *Dispatcher) propfind(ctx context.Context, user, rootPath string, depth int, isExcel bool) ([]propfindEntry, error) {
	queue := []string{rootPath}
	frontier := []string{rootPath}

	for ; depth > 0; depth-- {
		var next []string
		for _, p := range frontier {
			children, err := d.FS.GetChildren(ctx, user, p)
			if err != nil {
				continue // not a collection, or unreadable: no further descent
			}
			queue = append(queue, children...)
			next = append(next, children...)
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	entries := make([]propfindEntry, 0, len(queue))
	for i, p := range queue {
		props, err := d.FS.GetProps(ctx, user, p, nil)
		if err != nil {
			if i == 0 {
				// the root's absence fails the whole request.
				return nil, err
			}
			if fs.KindOf(err) == fs.KindNotFound {
				continue // silently omitted per spec.md §4.5
			}
			continue
		}

		if isExcel {
			for name := range excelStripped {
				delete(props, name)
			}
		}

		var lock *Lock
		if uid, err := d.FS.GetUID(ctx, user, p); err == nil {
			lock = d.Locks.Get(uid)
		}

		entries = append(entries, propfindEntry{Path: p, Props: props, Lock: lock})
	}
	return entries, nil
}
