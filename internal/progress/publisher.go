// Package progress streams placement and routing progress to a socket.io
// endpoint so a dashboard can follow a run live.
package progress

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/gridmapper/internal/ctxlog"
	"github.com/vk/gridmapper/internal/observe"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names emitted by SocketPublisher.
const (
	EventPlacementTick = "placement_tick"
	EventRoutingPass   = "routing_pass"
	EventDone          = "run_done"
)

// DefaultDialTimeout bounds the initial connection when Options.Timeout is
// zero.
const DefaultDialTimeout = 15 * time.Second

// Options configures Dial.
type Options struct {
	URL                string
	Namespace          string
	RunID              string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// SocketPublisher is an observe.Observer that emits every report as a
// socket.io event. Emits are fire-and-forget; a dropped connection never
// stalls the engines.
type SocketPublisher struct {
	runID      string
	emit       func(event string, data any)
	disconnect func()

	mu     sync.Mutex
	closed bool
}

var _ observe.Observer = (*SocketPublisher)(nil)

// Dial connects to opts.URL and returns a publisher bound to the socket.
func Dial(ctx context.Context, opts Options) (*SocketPublisher, error) {
	logger := ctxlog.FromContext(ctx).With("component", "progress", "url", opts.URL)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse progress URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("progress URL %q needs a scheme and host", opts.URL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	io := manager.Socket(opts.Namespace, sopts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})

	logger.Debug("Connecting progress publisher.")
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("progress connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("progress connection cancelled: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for progress connection", timeout)
	}
	logger.Info("Progress publisher connected.", "sid", io.Id())

	return newPublisher(opts.RunID,
		func(event string, data any) { io.Emit(event, data) },
		func() { io.Disconnect() },
	), nil
}

func newPublisher(runID string, emit func(string, any), disconnect func()) *SocketPublisher {
	return &SocketPublisher{runID: runID, emit: emit, disconnect: disconnect}
}

func (p *SocketPublisher) send(event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.emit(event, data)
}

func (p *SocketPublisher) PlacementTick(_ context.Context, r observe.TickReport) {
	if r.RunID == "" {
		r.RunID = p.runID
	}
	p.send(EventPlacementTick, r)
}

func (p *SocketPublisher) RoutingPass(_ context.Context, r observe.PassReport) {
	if r.RunID == "" {
		r.RunID = p.runID
	}
	p.send(EventRoutingPass, r)
}

// Done emits the final summary payload. It is a no-op after Close.
func (p *SocketPublisher) Done(summary any) {
	p.send(EventDone, summary)
}

// Close disconnects the socket. Later reports are dropped.
func (p *SocketPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.disconnect()
	return nil
}
