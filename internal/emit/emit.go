// Package emit streams workspace changes to an external renderer over
// socket.io. The core never draws; a renderer process subscribes to the
// changeset event stream and redraws from it. The emitter is optional and
// fire-and-forget: a missing or flaky renderer never blocks editing.
package emit

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/workspace"
)

// EventChangeSet is the event name carrying one serialized ChangeSet.
const EventChangeSet = "changeset"

// Emitter pushes ChangeSets to a socket.io endpoint.
type Emitter struct {
	io        *socket.Socket
	connected atomic.Bool
}

// Dial connects to a renderer endpoint, e.g. "http://localhost:3000/weft".
// The connection is established in the background; emits issued before it
// settles are buffered by the client.
func Dial(ctx context.Context, rawURL string) (*Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse emit URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	namespace := parsedURL.Path
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)
	e := &Emitter{io: io}

	io.On(types.EventName("connect"), func(...any) {
		e.connected.Store(true)
		logger.Info("Renderer connected.", "namespace", namespace, "sid", io.Id())
	})
	io.On(types.EventName("disconnect"), func(...any) {
		e.connected.Store(false)
		logger.Warn("Renderer disconnected.")
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		logger.Warn("Renderer connection error.", "error", fmt.Sprint(errs...))
	})

	io.Connect()
	return e, nil
}

// EmitChangeSet sends one ChangeSet. Empty sets are skipped.
func (e *Emitter) EmitChangeSet(ctx context.Context, cs *workspace.ChangeSet) {
	if cs == nil || cs.Empty() {
		return
	}
	payload := encodeChangeSet(cs)
	ctxlog.FromContext(ctx).Debug("Emitting changeset.", "values", len(cs.ValuesChanged))
	e.io.Emit(EventChangeSet, payload)
}

// Connected reports whether the renderer link is currently up.
func (e *Emitter) Connected() bool { return e.connected.Load() }

// Close tears the connection down.
func (e *Emitter) Close() {
	e.io.Disconnect()
}
