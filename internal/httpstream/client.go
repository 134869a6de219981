// Package httpstream issues MMSH requests over HTTP and streams response
// bodies to a receiver in chunks.
//
// A Client runs one request at a time. Send queues the next request and
// Abort cancels the active one; both may be called from inside the
// receiver's Read, which is how an mmsh.Downloader replaces its describe
// request with a play request.
package httpstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	pool "github.com/libp2p/go-buffer-pool"
	"golang.org/x/time/rate"

	"github.com/zsiec/mmsget/internal/mmsh"
)

// DefaultChunkSize is the read size used when Options.ChunkSize is zero.
const DefaultChunkSize = 32 * 1024

// Receiver consumes response bytes. Finished is called once per request that
// ends without being aborted; err is nil on a clean end of body.
type Receiver interface {
	Read(chunk []byte) error
	Finished(err error)
}

// StatusError reports a non-200 response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpstream: unexpected status %s", e.Status)
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client

	// Limiter paces outgoing requests. Nil means no pacing.
	Limiter *rate.Limiter

	ChunkSize int
	Log       *slog.Logger
}

// Client is an mmsh.Transport backed by net/http.
type Client struct {
	hc        *http.Client
	limiter   *rate.Limiter
	chunkSize int
	log       *slog.Logger

	mu      sync.Mutex
	pending *mmsh.Request
	gen     uint64
	cancel  context.CancelFunc
}

var _ mmsh.Transport = (*Client)(nil)

// New creates a Client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Client{
		hc:        opts.HTTPClient,
		limiter:   opts.Limiter,
		chunkSize: opts.ChunkSize,
		log:       opts.Log.With("component", "httpstream"),
	}
}

// Send queues req as the next request. A queued request that has not
// started yet is replaced.
func (c *Client) Send(req *mmsh.Request) error {
	if req == nil {
		return errors.New("httpstream: nil request")
	}
	c.mu.Lock()
	c.pending = req
	c.mu.Unlock()
	return nil
}

// Abort cancels the active request and drops any queued one. The receiver
// is not told about aborted requests.
func (c *Client) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.pending = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Run executes queued requests until none is left or ctx is done.
func (c *Client) Run(ctx context.Context, recv Receiver) error {
	for {
		req, gen, ok := c.next()
		if !ok {
			return nil
		}

		err := c.limiter.Wait(ctx)
		if err == nil {
			err = c.do(ctx, req, gen, recv)
		}
		if c.aborted(gen) {
			continue
		}
		c.finish(gen)
		recv.Finished(err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Client) next() (*mmsh.Request, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil, 0, false
	}
	req := c.pending
	c.pending = nil
	return req, c.gen, true
}

func (c *Client) aborted(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

func (c *Client) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.cancel = nil
	}
}

// do performs req and streams its body to recv until the body ends, a read
// fails or the request is aborted.
func (c *Client) do(ctx context.Context, req *mmsh.Request, gen uint64, recv Receiver) error {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(rctx, req.Method, req.URL, body)
	if err != nil {
		return err
	}
	hreq.Header = req.Header.Clone()

	c.log.Debug("request", "method", req.Method, "url", req.URL, "pragma", req.Header.Values("Pragma"))
	resp, err := c.hc.Do(hreq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	buf := pool.Get(c.chunkSize)
	defer pool.Put(buf)

	var total int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			total += int64(n)
			if err := recv.Read(buf[:n]); err != nil && !c.aborted(gen) {
				return err
			}
			if c.aborted(gen) {
				c.log.Debug("request aborted", "bytes", total)
				return nil
			}
		}
		if errors.Is(rerr, io.EOF) {
			c.log.Debug("response complete", "bytes", total)
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
