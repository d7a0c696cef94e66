package webdav

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/coredav/webdavd/webdav/auth"
	"github.com/coredav/webdavd/webdav/fs"
	"github.com/rs/zerolog"
)

// allowHeader is the fixed Allow/DAV advertisement spec.md §6 requires
// verbatim on every OPTIONS response.
const allowHeader = "GET, HEAD, POST, PUT, DELETE, OPTIONS, PROPFIND, PROPPATCH, MKCOL, LOCK, UNLOCK, MOVE, COPY"

// crossBackend is implemented by composite backends (Multiplex) that can
// tell the dispatcher whether two paths resolve to different underlying
// backends, so MOVE across them can be rejected per spec.md §9 Open
// Question (iii).
type crossBackend interface {
	BackendFor(path string) (fs.Backend, bool)
}

// Dispatcher is the protocol engine (C9): it owns no storage state itself,
// only delegating to FS and Locks, and is the single place HTTP status
// codes get chosen.
//
// Grounded on original_source/orbit-webdavd.py's WebDAVRequestHandler
// (one do_* method per HTTP method) and on the teacher's central-Handler
// shape (rfielding-webdev/webdav/fs/example1/example.go's buildHandler
// wiring an http.Handler around a FileSystem and a LockSystem).
type Dispatcher struct {
	FS    fs.Backend
	Auth  auth.Authenticator
	Locks *LockRegistry
	Log   zerolog.Logger
}

func NewDispatcher(backend fs.Backend, authenticator auth.Authenticator, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		FS:    backend,
		Auth:  authenticator,
		Locks: NewLockRegistry(),
		Log:   log,
	}
}

// ServeHTTP is the dispatcher's top-level recovery boundary: any uncaught
// panic becomes 500 and is logged, never leaked to the client, per
// spec.md §4.4/§7's failure policy.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			d.Log.Error().Interface("panic", rec).Str("method", r.Method).Str("path", r.URL.Path).Msg("webdav: recovered")
			writeStatus(w, http.StatusInternalServerError)
		}
	}()

	if r.Method == http.MethodOptions {
		d.handleOptions(w, r)
		return
	}

	req, err := ParseRequest(r)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	user := d.requireAuth(w, req)
	if user == "" {
		return
	}

	log := d.Log.With().Str("user", user).Str("method", r.Method).Str("path", req.Path).Logger()
	ctx := r.Context()

	var status int
	switch r.Method {
	case http.MethodHead:
		status = d.handleHead(ctx, w, user, req)
	case http.MethodGet:
		status = d.handleGet(ctx, w, user, req)
	case http.MethodPut:
		status = d.handlePut(ctx, w, user, req)
	case "MKCOL":
		status = d.handleMkcol(ctx, w, user, req)
	case http.MethodDelete:
		status = d.handleDelete(ctx, w, user, req)
	case "COPY":
		status = d.handleCopy(ctx, w, user, req)
	case "MOVE":
		status = d.handleMove(ctx, w, user, req)
	case "PROPFIND":
		status = d.handlePropfind(ctx, w, user, req)
	case "PROPPATCH":
		if lockStatus, ok := d.checkLock(ctx, user, relPath(req), req.LockToken); !ok {
			status = lockStatus
			writeStatus(w, status)
		} else {
			status = d.handlePropfind(ctx, w, user, req)
		}
	case "LOCK":
		status = d.handleLock(ctx, w, user, req)
	case "UNLOCK":
		status = d.handleUnlock(ctx, w, user, req)
	default:
		status = http.StatusMethodNotAllowed
		writeStatus(w, status)
	}

	log.Info().Int("status", status).Dur("elapsed", time.Since(start)).Msg("webdav request")
}

func (d *Dispatcher) handleOptions(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("DAV", "1, 2")
	h.Set("Allow", allowHeader)
	h.Set("MS-Author-Via", "DAV")
	h.Set("WWW-Authenticate", `Basic realm="WebDav Auth"`)
	h.Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
}

// requireAuth returns the authenticated username, or "" after having
// written a 401 response itself.
func (d *Dispatcher) requireAuth(w http.ResponseWriter, req *Request) string {
	if req.Username != "" && d.Auth.Authenticate(req.Username, req.Password) {
		return req.Username
	}
	w.Header().Set("WWW-Authenticate", `Basic realm="WebDav Auth"`)
	writeStatus(w, http.StatusUnauthorized)
	return ""
}

// statusFor maps an error's Kind to the single HTTP status spec.md §7
// assigns it.
func statusFor(err error) int {
	switch fs.KindOf(err) {
	case fs.KindNotFound:
		return http.StatusNotFound
	case fs.KindForbidden:
		return http.StatusForbidden
	case fs.KindConflict:
		return http.StatusConflict
	case fs.KindLockConflict:
		return http.StatusLocked
	case fs.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case fs.KindUnauthenticated:
		return http.StatusUnauthorized
	case fs.KindBadGateway:
		return http.StatusBadGateway
	case fs.KindUnsupported:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(status)
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}

func relPath(req *Request) string {
	return path.Clean("/" + strings.TrimPrefix(req.Path, "/"))
}

// checkLock implements the lock-enforced precondition spec.md §4.4.2
// requires for PUT, MOVE, PROPPATCH, MKCOL and COPY at their target path:
// authorize_write(uid, token) must be WriteOK or the request fails 423.
// DELETE makes the same check inline in handleDelete.
func (d *Dispatcher) checkLock(ctx context.Context, user, urlPath, token string) (int, bool) {
	uid, err := d.FS.GetUID(ctx, user, urlPath)
	if err != nil {
		// target may legitimately not exist yet (PUT/MKCOL of a new
		// resource); absence of a uid is not a lock conflict.
		return 0, true
	}
	switch d.Locks.AuthorizeWrite(uid, token) {
	case WriteOK:
		return 0, true
	default:
		return http.StatusLocked, false
	}
}

func (d *Dispatcher) handleHead(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)
	props, err := d.FS.GetProps(ctx, user, p, []string{"D:getcontentlength"})
	if err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}
	size, _ := props["D:getcontentlength"].(int64)
	w.Header().Set("Content-Length", fmt.Sprint(size))
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent
}

func (d *Dispatcher) handleGet(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)
	props, err := d.FS.GetProps(ctx, user, p, []string{"D:iscollection"})
	if err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}

	if isCollection, _ := props["D:iscollection"].(bool); isCollection {
		children, err := d.FS.GetChildren(ctx, user, p)
		if err != nil {
			status := statusFor(err)
			writeStatus(w, status)
			return status
		}
		entries := make([]directoryEntry, 0, len(children))
		for _, c := range children {
			childProps, err := d.FS.GetProps(ctx, user, c, []string{"D:iscollection", "D:displayname"})
			if err != nil {
				continue
			}
			isDir, _ := childProps["D:iscollection"].(bool)
			name, _ := childProps["D:displayname"].(string)
			if name == "" {
				name = path.Base(c)
			}
			href := name
			if isDir {
				href += "/"
			}
			entries = append(entries, directoryEntry{Name: name, Href: href, IsDir: isDir})
		}
		body, err := renderDirectory(p, entries)
		if err != nil {
			writeStatus(w, http.StatusInternalServerError)
			return http.StatusInternalServerError
		}
		writeBody(w, http.StatusOK, "text/html; charset=utf-8", body)
		return http.StatusOK
	}

	allProps, err := d.FS.GetProps(ctx, user, p, []string{"D:getcontenttype"})
	if err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}
	data, err := d.FS.GetContent(ctx, user, p, -1, -1)
	if err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}
	contentType, _ := allProps["D:getcontenttype"].(string)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	writeBody(w, http.StatusOK, contentType, data)
	return http.StatusOK
}

func (d *Dispatcher) handlePut(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)

	if status, ok := d.checkLock(ctx, user, p, req.LockToken); !ok {
		writeStatus(w, status)
		return status
	}

	_, err := d.FS.GetProps(ctx, user, p, nil)
	existed := err == nil

	if !existed && fs.KindOf(err) != fs.KindNotFound {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}

	if !existed {
		if err := d.FS.Create(ctx, user, p, false); err != nil {
			status := statusFor(err)
			writeStatus(w, status)
			return status
		}
	}

	if err := d.FS.SetContent(ctx, user, p, req.Body, 0); err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusNoContent
	}
	writeStatus(w, status)
	return status
}

func (d *Dispatcher) handleMkcol(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)
	if status, ok := d.checkLock(ctx, user, p, req.LockToken); !ok {
		writeStatus(w, status)
		return status
	}
	if err := d.FS.Create(ctx, user, p, true); err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}
	writeStatus(w, http.StatusCreated)
	return http.StatusCreated
}

func (d *Dispatcher) handleDelete(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)

	uid, uidErr := d.FS.GetUID(ctx, user, p)
	if uidErr == nil {
		if lock := d.Locks.Get(uid); lock != nil {
			if req.LockToken == "" || req.LockToken != lock.Token {
				writeStatus(w, http.StatusLocked)
				return http.StatusLocked
			}
		}
	}

	if err := d.FS.Delete(ctx, user, p); err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}

	if uidErr == nil {
		if lock := d.Locks.Get(uid); lock != nil && lock.Token == req.LockToken {
			d.Locks.Clear(uid)
		}
	}

	writeStatus(w, http.StatusNoContent)
	return http.StatusNoContent
}

// copyTree is the recursive depth-first copy spec.md §4.4.2 describes,
// grounded in shape (not in backend type) on
// rfielding-webdev/webdav/utilities.go's CopyFiles: the same
// exists/overwrite/created bookkeeping, translated from *os.File onto the
// Backend contract.
func (d *Dispatcher) copyTree(ctx context.Context, user, src, dst string, overwrite bool) (int, error) {
	srcProps, err := d.FS.GetProps(ctx, user, src, []string{"D:iscollection"})
	if err != nil {
		return statusFor(err), err
	}
	isCollection, _ := srcProps["D:iscollection"].(bool)

	_, dstErr := d.FS.GetProps(ctx, user, dst, nil)
	dstExists := dstErr == nil
	if dstErr != nil && fs.KindOf(dstErr) != fs.KindNotFound {
		return statusFor(dstErr), dstErr
	}

	if isCollection {
		if !dstExists {
			if err := d.FS.Create(ctx, user, dst, true); err != nil && fs.KindOf(err) != fs.KindConflict {
				return statusFor(err), err
			}
		}
		children, err := d.FS.GetChildren(ctx, user, src)
		if err != nil {
			return statusFor(err), err
		}
		for _, c := range children {
			name := path.Base(c)
			if _, err := d.copyTree(ctx, user, c, path.Join(dst, name), overwrite); err != nil {
				return statusFor(err), err
			}
		}
		if dstExists {
			return http.StatusNoContent, nil
		}
		return http.StatusCreated, nil
	}

	if dstExists && !overwrite {
		return http.StatusPreconditionFailed, fs.NewError(fs.KindPreconditionFailed, "copy", nil)
	}

	data, err := d.FS.GetContent(ctx, user, src, -1, -1)
	if err != nil {
		return statusFor(err), err
	}
	if !dstExists {
		if err := d.FS.Create(ctx, user, dst, false); err != nil {
			return statusFor(err), err
		}
	}
	if err := d.FS.SetContent(ctx, user, dst, data, 0); err != nil {
		return statusFor(err), err
	}
	if dstExists {
		return http.StatusNoContent, nil
	}
	return http.StatusCreated, nil
}

// crossBackendStatus returns (http.StatusBadGateway, false) when src and
// dst resolve to two different Multiplex mounts, resolving spec.md §9
// Open Question (iii).
func (d *Dispatcher) crossBackendStatus(src, dst string) (int, bool) {
	cb, ok := d.FS.(crossBackend)
	if !ok {
		return 0, true
	}
	srcBackend, srcOK := cb.BackendFor(src)
	dstBackend, dstOK := cb.BackendFor(dst)
	if !srcOK || !dstOK {
		return 0, true
	}
	if srcBackend != dstBackend {
		return http.StatusBadGateway, false
	}
	return 0, true
}

func (d *Dispatcher) handleCopy(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	src := relPath(req)
	dst := path.Clean("/" + req.Destination)

	if status, ok := d.crossBackendStatus(src, dst); !ok {
		writeStatus(w, status)
		return status
	}
	if status, ok := d.checkLock(ctx, user, dst, req.LockToken); !ok {
		writeStatus(w, status)
		return status
	}

	status, _ := d.copyTree(ctx, user, src, dst, req.Overwrite)
	writeStatus(w, status)
	return status
}

func (d *Dispatcher) handleMove(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	src := relPath(req)
	dst := path.Clean("/" + req.Destination)

	if status, ok := d.crossBackendStatus(src, dst); !ok {
		writeStatus(w, status)
		return status
	}
	if status, ok := d.checkLock(ctx, user, dst, req.LockToken); !ok {
		writeStatus(w, status)
		return status
	}
	if status, ok := d.checkLock(ctx, user, src, req.LockToken); !ok {
		writeStatus(w, status)
		return status
	}

	status, err := d.copyTree(ctx, user, src, dst, req.Overwrite)
	if err != nil {
		writeStatus(w, status)
		return status
	}
	if err := d.FS.Delete(ctx, user, src); err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}
	writeStatus(w, http.StatusNoContent)
	return http.StatusNoContent
}

func (d *Dispatcher) handlePropfind(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)
	entries, err := d.propfind(ctx, user, p, req.Depth, req.IsExcel)
	if err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}
	body, err := renderMultistatus(entries)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	writeBody(w, http.StatusMultiStatus, "text/xml; charset=utf-8", body)
	return http.StatusMultiStatus
}

func (d *Dispatcher) handleLock(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)

	// spec.md §9 Open Question (ii): shared locks are out of scope, so a
	// lockscope of "shared" is rejected outright rather than silently
	// downgraded to exclusive.
	if req.LockShared {
		writeStatus(w, http.StatusUnsupportedMediaType)
		return http.StatusUnsupportedMediaType
	}

	// RFC 4918 §9.10.4 lock-null semantics: LOCK on an absent resource
	// both creates the lock and an empty placeholder resource.
	_, err := d.FS.GetProps(ctx, user, p, nil)
	absent := fs.KindOf(err) == fs.KindNotFound

	uid, err := d.FS.GetUID(ctx, user, p)
	if err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}

	if existing := d.Locks.Get(uid); existing != nil {
		writeStatus(w, http.StatusConflict)
		return http.StatusConflict
	}

	token, err := NewToken()
	if err != nil {
		writeStatus(w, http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	lock := &Lock{
		UID:     uid,
		Owner:   req.LockOwner,
		Scope:   ScopeExclusive,
		Depth:   InfiniteDepth,
		Timeout: 300 * time.Second,
		Token:   token,
	}
	if err := d.Locks.Set(uid, lock); err != nil {
		writeStatus(w, http.StatusConflict)
		return http.StatusConflict
	}

	if absent {
		d.FS.Create(ctx, user, p, false)
	}

	body, err := renderLock(lock)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	w.Header().Set("Lock-Token", "<opaquelocktoken:"+lock.Token+">")
	writeBody(w, http.StatusOK, "text/xml; charset=utf-8", body)
	return http.StatusOK
}

func (d *Dispatcher) handleUnlock(ctx context.Context, w http.ResponseWriter, user string, req *Request) int {
	p := relPath(req)
	uid, err := d.FS.GetUID(ctx, user, p)
	if err != nil {
		status := statusFor(err)
		writeStatus(w, status)
		return status
	}

	lock := d.Locks.Get(uid)
	if lock == nil {
		writeStatus(w, http.StatusConflict)
		return http.StatusConflict
	}
	if req.LockToken == "" || req.LockToken != lock.Token {
		writeStatus(w, http.StatusMethodNotAllowed)
		return http.StatusMethodNotAllowed
	}
	if err := d.Locks.Clear(uid); err != nil {
		writeStatus(w, http.StatusConflict)
		return http.StatusConflict
	}
	writeStatus(w, http.StatusOK)
	return http.StatusOK
}
