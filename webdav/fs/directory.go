package fs

import (
	"context"
	"crypto/sha256"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Directory is a Backend bound to a local directory. Every call confines
// its target path to Base (or one of Extra) before touching disk.
//
// Grounded on original_source/webdavdlib/filesystems.py's
// DirectoryFilesystem (resource/property construction, create_resource)
// and on the path-confinement and *os.File plumbing of
// webdav/fs/fs.go's DPFile/FS in the pack, generalized to the Backend
// contract instead of http.File/os.FileInfo.
type Directory struct {
	Base     string   // local directory this backend is rooted at
	Extra    []string // additional absolute local paths also considered "inside"
	Operator Operator // identity-switch strategy; NoopOperator if nil
	Authz    Authorizer
	Log      zerolog.Logger

	mu sync.RWMutex
}

// NewDirectory validates base exists and is a directory before returning a
// backend rooted there.
func NewDirectory(base string, log zerolog.Logger) (*Directory, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, NewError(KindNotFound, "NewDirectory", err)
	}
	if !info.IsDir() {
		return nil, NewError(KindForbidden, "NewDirectory", fmt.Errorf("%s is not a directory", base))
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, NewError(KindUnexpected, "NewDirectory", err)
	}
	return &Directory{Base: abs, Operator: NoopOperator{}, Authz: AllowAllAuthorizer{}, Log: log}, nil
}

// within reports whether real is root itself or lies under it. confine
// uses it so that no file outside the sandbox is ever touched, even via
// "..".
func within(real, root string) bool {
	return real == root || strings.HasPrefix(real, root+string(os.PathSeparator))
}

// confine joins urlPath onto Base, after collapsing ".." segments, and
// accepts the result only if it stays under Base. If it escapes Base, the
// same relative path is tried under each additional allowed root (Extra)
// in order, and the first candidate that stays under its root is returned;
// whether a resource exists there is not checked. Extra roots are trusted
// exactly as much as Base, never more.
func (d *Directory) confine(urlPath string) (string, error) {
	clean := path.Clean("/" + urlPath)
	rel := filepath.FromSlash(clean)

	baseAbs, err := filepath.Abs(d.Base)
	if err != nil {
		return "", NewError(KindUnexpected, "confine", err)
	}
	real := filepath.Join(baseAbs, rel)
	if within(real, baseAbs) {
		return real, nil
	}

	for _, root := range d.Extra {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		candidate := filepath.Join(rootAbs, rel)
		if within(candidate, rootAbs) {
			return candidate, nil
		}
	}
	return "", NewError(KindForbidden, "confine", fmt.Errorf("path %q escapes sandbox", urlPath))
}

// withIdentity brackets fn with Operator.Begin/End. A UnixOperator changes
// the calling OS thread's effective uid/gid, so the goroutine is pinned to
// that thread for the duration — otherwise the Go scheduler could resume it
// on a thread still running as a different user.
func (d *Directory) withIdentity(ctx context.Context, user string, fn func() error) error {
	op := d.Operator
	if op == nil {
		op = NoopOperator{}
	}
	if _, noop := op.(NoopOperator); !noop {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	if err := op.Begin(user); err != nil {
		return NewError(KindForbidden, "operator.begin", err)
	}
	defer op.End(user)
	return fn()
}

func (d *Directory) checkAuthz(ctx context.Context, user, urlPath string, allow Allow) error {
	action := Action{Action: allow, Name: urlPath}
	if !d.Authz.Authorize(ctx, user, action) {
		return NewError(KindForbidden, "authorize", fmt.Errorf("user %q denied %s on %q", user, allow, urlPath))
	}
	return nil
}

// GetProps computes property values on demand from a stat of the real
// path. When propnames is empty all standard properties are returned.
func (d *Directory) GetProps(ctx context.Context, user, urlPath string, propnames []string) (map[string]any, error) {
	if err := d.checkAuthz(ctx, user, urlPath, AllowStat); err != nil {
		return nil, err
	}
	real, err := d.confine(urlPath)
	if err != nil {
		return nil, err
	}

	var props map[string]any
	err = d.withIdentity(ctx, user, func() error {
		info, statErr := os.Stat(real)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				return NewError(KindNotFound, "stat", statErr)
			}
			if os.IsPermission(statErr) {
				return NewError(KindForbidden, "stat", statErr)
			}
			return NewError(KindUnexpected, "stat", statErr)
		}
		props = propsFor(urlPath, real, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(propnames) == 0 {
		return props, nil
	}
	filtered := make(map[string]any, len(propnames))
	for _, name := range propnames {
		if v, ok := props[name]; ok {
			filtered[name] = v
		}
	}
	return filtered, nil
}

// GetChildren lists a collection's immediate children as "<urlPath>/<name>".
func (d *Directory) GetChildren(ctx context.Context, user, urlPath string) ([]string, error) {
	if err := d.checkAuthz(ctx, user, urlPath, AllowRead); err != nil {
		return nil, err
	}
	real, err := d.confine(urlPath)
	if err != nil {
		return nil, err
	}

	var out []string
	err = d.withIdentity(ctx, user, func() error {
		entries, readErr := os.ReadDir(real)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return NewError(KindNotFound, "readdir", readErr)
			}
			return NewError(KindForbidden, "readdir", readErr)
		}
		base := strings.TrimSuffix(path.Clean("/"+urlPath), "/")
		for _, e := range entries {
			out = append(out, base+"/"+e.Name())
		}
		return nil
	})
	return out, err
}

// GetContent reads [start, end) from the resource, or the whole resource
// if start == -1.
func (d *Directory) GetContent(ctx context.Context, user, urlPath string, start, end int64) ([]byte, error) {
	if err := d.checkAuthz(ctx, user, urlPath, AllowRead); err != nil {
		return nil, err
	}
	real, err := d.confine(urlPath)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = d.withIdentity(ctx, user, func() error {
		f, openErr := os.Open(real)
		if openErr != nil {
			if os.IsNotExist(openErr) {
				return NewError(KindNotFound, "open", openErr)
			}
			return NewError(KindForbidden, "open", openErr)
		}
		defer f.Close()

		if start < 0 {
			b, readErr := os.ReadFile(real)
			if readErr != nil {
				return NewError(KindUnexpected, "readfile", readErr)
			}
			data = b
			return nil
		}
		if _, seekErr := f.Seek(start, os.SEEK_SET); seekErr != nil {
			return NewError(KindUnexpected, "seek", seekErr)
		}
		buf := make([]byte, end-start)
		n, readErr := f.Read(buf)
		if readErr != nil && n == 0 {
			return NewError(KindUnexpected, "read", readErr)
		}
		data = buf[:n]
		return nil
	})
	return data, err
}

// SetContent opens the resource read-write if it exists, write-only
// (creating it) otherwise, seeks to start, and writes data — supporting
// partial overwrites as well as full replacement (start == 0).
func (d *Directory) SetContent(ctx context.Context, user, urlPath string, data []byte, start int64) error {
	if err := d.checkAuthz(ctx, user, urlPath, AllowWrite); err != nil {
		return err
	}
	real, err := d.confine(urlPath)
	if err != nil {
		return err
	}

	return d.withIdentity(ctx, user, func() error {
		flag := os.O_RDWR
		if _, statErr := os.Stat(real); os.IsNotExist(statErr) {
			flag = os.O_WRONLY | os.O_CREATE
		}
		f, openErr := os.OpenFile(real, flag, 0o644)
		if openErr != nil {
			return NewError(KindForbidden, "openfile", openErr)
		}
		defer f.Close()

		if _, seekErr := f.Seek(start, os.SEEK_SET); seekErr != nil {
			return NewError(KindUnexpected, "seek", seekErr)
		}
		if _, writeErr := f.Write(data); writeErr != nil {
			return NewError(KindUnexpected, "write", writeErr)
		}
		if start == 0 {
			return f.Truncate(int64(len(data)))
		}
		return nil
	})
}

// Create makes a new resource at urlPath: a directory if isCollection, an
// empty file otherwise. The parent must already exist.
func (d *Directory) Create(ctx context.Context, user, urlPath string, isCollection bool) error {
	if err := d.checkAuthz(ctx, user, urlPath, AllowCreate); err != nil {
		return err
	}
	real, err := d.confine(urlPath)
	if err != nil {
		return err
	}

	return d.withIdentity(ctx, user, func() error {
		parent := filepath.Dir(real)
		if info, statErr := os.Stat(parent); statErr != nil || !info.IsDir() {
			return NewError(KindConflict, "create", fmt.Errorf("parent of %q does not exist", urlPath))
		}
		if _, statErr := os.Stat(real); statErr == nil {
			return NewError(KindConflict, "create", fmt.Errorf("%q already exists", urlPath))
		}
		if isCollection {
			if err := os.Mkdir(real, 0o755); err != nil {
				return NewError(KindConflict, "mkdir", err)
			}
			return nil
		}
		f, createErr := os.OpenFile(real, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if createErr != nil {
			return NewError(KindConflict, "create", createErr)
		}
		return f.Close()
	})
}

// Delete removes the resource at urlPath, recursively for collections.
func (d *Directory) Delete(ctx context.Context, user, urlPath string) error {
	if err := d.checkAuthz(ctx, user, urlPath, AllowDelete); err != nil {
		return err
	}
	real, err := d.confine(urlPath)
	if err != nil {
		return err
	}

	return d.withIdentity(ctx, user, func() error {
		if _, statErr := os.Stat(real); os.IsNotExist(statErr) {
			return NewError(KindNotFound, "delete", statErr)
		}
		if removeErr := os.RemoveAll(real); removeErr != nil {
			return NewError(KindForbidden, "delete", removeErr)
		}
		return nil
	})
}

// GetUID returns a stable resource-id for urlPath: the confined real path
// itself, which uniquely identifies the underlying inode for the lifetime
// of the process (two URL paths through Extra aliases that resolve to the
// same file are deliberately not deduplicated here — that is a known
// limitation noted in DESIGN.md).
func (d *Directory) GetUID(ctx context.Context, user, urlPath string) (string, error) {
	real, err := d.confine(urlPath)
	if err != nil {
		return "", err
	}
	return real, nil
}

func propsFor(urlPath, real string, info os.FileInfo) map[string]any {
	isCollection := info.IsDir()
	base := path.Base(path.Clean("/" + urlPath))
	if base == "." || base == "/" {
		base = ""
	}

	props := map[string]any{
		"D:iscollection":     isCollection,
		"D:getlastmodified":  info.ModTime(),
		"D:lastmodified":     info.ModTime(),
		"D:creationdate":     ctime(info),
		"D:lastaccessed":     atime(info),
		"D:displayname":      base,
		"D:name":             base,
		"D:ishidden":         strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~"),
		"D:getetag":          etag(real, info),
		"Z:Win32FileAttributes": win32Attrs(isCollection),
		"Z:Win32CreationTime":     ctime(info),
		"Z:Win32LastAccessTime":   atime(info),
		"Z:Win32LastModifiedTime": info.ModTime(),
	}

	if isCollection {
		props["D:resourcetype"] = "<D:collection/>"
	} else {
		props["D:resourcetype"] = ""
		props["D:getcontentlength"] = info.Size()
		props["D:getcontenttype"] = contentType(base)
	}
	return props
}

func contentType(name string) string {
	ext := filepath.Ext(name)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// etag hashes (size, mtime, ctime, atime, inode, path) per spec.md §4.2.1,
// grounded on original_source/webdavdlib/filesystems.py's sha256-of-stat
// EtagProperty construction (there: size, mtime, path only — extended
// here to the full tuple spec.md names).
func etag(real string, info os.FileInfo) string {
	h := sha256.New()
	ino, ct, at := statExtra(info)
	fmt.Fprintf(h, "%d|%d|%d|%d|%d|%s",
		info.Size(), info.ModTime().Unix(), ct.Unix(), at.Unix(), ino, real)
	return `"` + fmt.Sprintf("%x", h.Sum(nil)) + `"`
}

func win32Attrs(isCollection bool) string {
	if isCollection {
		return "16"
	}
	return "128"
}

func ctime(info os.FileInfo) time.Time {
	_, c, _ := statExtra(info)
	return c
}

func atime(info os.FileInfo) time.Time {
	_, _, a := statExtra(info)
	return a
}
