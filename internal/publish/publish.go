// Package publish forwards conflict lifecycle events to the external
// coordination layer.
package publish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/taskgrid/internal/conflict"
	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, conflict.Event) error { return nil }

// Close implements io.Closer.
func (Nop) Close() error { return nil }

// SocketIOConfig configures the socket.io sink.
type SocketIOConfig struct {
	URL                string
	Namespace          string
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// emitter is the part of *socket.Socket the sink needs.
type emitter interface {
	Emit(ev string, args ...any) error
}

// SocketIO emits every event on a socket.io connection, using the event type
// (for example "conflict.resolved") as the socket.io event name.
type SocketIO struct {
	io    emitter
	close func()
}

// DialSocketIO connects to the coordination layer and waits for the
// connection to be established.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("socket.io URL %q needs a scheme and a host", cfg.URL)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	logger.Debug("Initiating connection...")
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIO{io: io, close: func() { io.Disconnect() }}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// Publish emits ev. The payload is the JSON form of the event decoded into
// plain maps so every socket.io peer sees the same field names.
func (s *SocketIO) Publish(_ context.Context, ev conflict.Event) error {
	payload, err := toPayload(ev)
	if err != nil {
		return err
	}
	if err := s.io.Emit(string(ev.Type), payload); err != nil {
		return fmt.Errorf("emit %s: %w", ev.Type, err)
	}
	return nil
}

// Close disconnects the socket.
func (s *SocketIO) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func toPayload(ev conflict.Event) (map[string]any, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

var (
	_ conflict.EventSink = Nop{}
	_ conflict.EventSink = (*SocketIO)(nil)
)
