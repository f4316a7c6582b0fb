package mediaproxy

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// Gateway is a thin pass-through to an object store. Implementations carry
// no business rules and report every failure as an *Error.
//
// All methods accept a context for cancellation and deadlines.
type Gateway interface {
	// List returns objects whose key starts with q.Prefix, at most q.Limit
	// of them, continuing after q.Cursor. NextCursor is empty on the last page.
	List(ctx context.Context, q ListQuery) (ListResult, error)

	// Put stores body under obj.Key, replacing any existing object.
	Put(ctx context.Context, obj PutObject, body io.Reader) (PutResult, error)

	// PresignPut returns a time-limited URL a client can PUT the object to.
	PresignPut(ctx context.Context, req PresignPut) (PresignedURL, error)

	// Get opens an object for reading. The caller must close the reader.
	// Returns an error of KindNotFound when the key does not exist.
	Get(ctx context.Context, key string) (ObjectInfo, io.ReadCloser, error)

	// Head returns object attributes without the content.
	// Returns an error of KindNotFound when the key does not exist.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes an object. Deleting a key that does not exist is an
	// error of KindNotFound; a denied delete is KindForbidden.
	Delete(ctx context.Context, key string) error
}

// WithTimeout bounds every gateway call by d. Expired calls fail with
// KindTimeout. For Get, d bounds the time until the object stream is
// available; reading it afterwards is not limited. A non-positive d returns
// gw unchanged.
func WithTimeout(gw Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return gw
	}
	return &timeoutGateway{next: gw, timeout: d}
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

func (g *timeoutGateway) List(ctx context.Context, q ListQuery) (ListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	res, err := g.next.List(ctx, q)
	return res, timeoutErr(ctx, "list", q.Prefix, err)
}

func (g *timeoutGateway) Put(ctx context.Context, obj PutObject, body io.Reader) (PutResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	res, err := g.next.Put(ctx, obj, body)
	return res, timeoutErr(ctx, "put", obj.Key, err)
}

func (g *timeoutGateway) PresignPut(ctx context.Context, req PresignPut) (PresignedURL, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	res, err := g.next.PresignPut(ctx, req)
	return res, timeoutErr(ctx, "presign", req.Key, err)
}

func (g *timeoutGateway) Head(ctx context.Context, key string) (ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	info, err := g.next.Head(ctx, key)
	return info, timeoutErr(ctx, "head", key, err)
}

func (g *timeoutGateway) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return timeoutErr(ctx, "delete", key, g.next.Delete(ctx, key))
}

// Get cancels the call through a timer rather than a context deadline so
// the stream can outlive the timeout once it has been opened.
func (g *timeoutGateway) Get(ctx context.Context, key string) (ObjectInfo, io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	var expired atomic.Bool
	timer := time.AfterFunc(g.timeout, func() {
		expired.Store(true)
		cancel()
	})

	info, body, err := g.next.Get(ctx, key)
	if !timer.Stop() || err != nil {
		if body != nil {
			_ = body.Close()
		}
		cancel()
		if expired.Load() {
			return ObjectInfo{}, nil, NewError(KindTimeout, "get", key, context.DeadlineExceeded)
		}
		return ObjectInfo{}, nil, err
	}
	return info, &cancelOnClose{ReadCloser: body, cancel: cancel}, nil
}

func timeoutErr(ctx context.Context, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return NewError(KindTimeout, op, key, err)
	}
	return err
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
