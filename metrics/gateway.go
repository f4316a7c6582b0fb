package metrics

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sagarc03/mediaproxy"
)

type instrumentedGateway struct {
	next mediaproxy.Gateway
	obs  StorageObserver
}

// InstrumentGateway reports every gateway call to obs. Downloads are
// observed when the returned stream is closed, so bytes and duration
// cover the whole transfer.
func InstrumentGateway(gw mediaproxy.Gateway, obs StorageObserver) mediaproxy.Gateway {
	return &instrumentedGateway{next: gw, obs: obs}
}

func (g *instrumentedGateway) List(ctx context.Context, q mediaproxy.ListQuery) (mediaproxy.ListResult, error) {
	start := time.Now()
	res, err := g.next.List(ctx, q)
	g.obs.Observe("list", 0, err, time.Since(start))
	return res, err
}

func (g *instrumentedGateway) Put(ctx context.Context, obj mediaproxy.PutObject, body io.Reader) (mediaproxy.PutResult, error) {
	start := time.Now()
	cr := &countingReader{r: body}
	res, err := g.next.Put(ctx, obj, cr)
	g.obs.Observe("put", cr.n, err, time.Since(start))
	return res, err
}

func (g *instrumentedGateway) PresignPut(ctx context.Context, req mediaproxy.PresignPut) (mediaproxy.PresignedURL, error) {
	start := time.Now()
	res, err := g.next.PresignPut(ctx, req)
	g.obs.Observe("presign", 0, err, time.Since(start))
	return res, err
}

func (g *instrumentedGateway) Get(ctx context.Context, key string) (mediaproxy.ObjectInfo, io.ReadCloser, error) {
	start := time.Now()
	info, body, err := g.next.Get(ctx, key)
	if err != nil {
		g.obs.Observe("get", 0, err, time.Since(start))
		return info, nil, err
	}
	return info, &observedReader{countingReader: countingReader{r: body}, closer: body, start: start, obs: g.obs}, nil
}

func (g *instrumentedGateway) Head(ctx context.Context, key string) (mediaproxy.ObjectInfo, error) {
	start := time.Now()
	info, err := g.next.Head(ctx, key)
	g.obs.Observe("head", 0, err, time.Since(start))
	return info, err
}

func (g *instrumentedGateway) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := g.next.Delete(ctx, key)
	g.obs.Observe("delete", 0, err, time.Since(start))
	return err
}

type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}

type observedReader struct {
	countingReader
	closer io.Closer
	start  time.Time
	obs    StorageObserver
	once   sync.Once
}

func (o *observedReader) Close() error {
	err := o.closer.Close()
	o.once.Do(func() {
		o.obs.Observe("get", o.n, o.countingReader.err, time.Since(o.start))
	})
	return err
}
