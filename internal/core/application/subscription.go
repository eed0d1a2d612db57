package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/pkg/boltz"
	log "github.com/sirupsen/logrus"
)

const connectRetryInterval = 2 * time.Second

// subscriptionHandler keeps a Boltz status stream open for the tracked swaps
// and hands every update to onUpdate.
type subscriptionHandler struct {
	api      *boltz.Api
	onUpdate func(update boltz.SwapUpdate)

	mu          sync.Mutex
	ws          *boltz.Websocket
	connected   bool
	swapIds     map[string]struct{}
	cancelRetry func()
}

func newSubscriptionHandler(api *boltz.Api, onUpdate func(update boltz.SwapUpdate)) *subscriptionHandler {
	return &subscriptionHandler{
		api:      api,
		onUpdate: onUpdate,
		mu:       sync.Mutex{},
		swapIds:  make(map[string]struct{}),
	}
}

func (h *subscriptionHandler) subscribe(swapIds ...string) error {
	h.mu.Lock()
	for _, id := range swapIds {
		h.swapIds[id] = struct{}{}
	}
	ws, connected := h.ws, h.connected
	h.mu.Unlock()

	if ws == nil || !connected {
		log.Debugf("boltz stream not connected, %d swaps queued", len(swapIds))
		return nil
	}
	return ws.Subscribe(swapIds)
}

func (h *subscriptionHandler) unsubscribe(swapId string) {
	h.mu.Lock()
	delete(h.swapIds, swapId)
	ws := h.ws
	h.mu.Unlock()

	if ws != nil {
		ws.Unsubscribe(swapId)
	}
}

func (h *subscriptionHandler) start() {
	ctx, cancel := context.WithCancel(context.Background())
	ws := h.api.NewWebsocket()

	h.mu.Lock()
	if h.ws != nil {
		h.mu.Unlock()
		cancel()
		return
	}
	h.ws = ws
	h.cancelRetry = cancel
	h.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Debugf("context done, stop connecting to boltz")
				return
			default:
			}

			err := ws.Connect()
			if err == nil {
				break
			}
			if errors.Is(err, boltz.ErrWebsocketClosed) {
				return
			}
			log.WithError(err).Warnf("retrying in %s", connectRetryInterval)
			time.Sleep(connectRetryInterval)
		}

		h.mu.Lock()
		if h.ws != ws {
			h.mu.Unlock()
			return
		}
		h.connected = true
		swapIds := make([]string, 0, len(h.swapIds))
		for id := range h.swapIds {
			swapIds = append(swapIds, id)
		}
		h.mu.Unlock()

		log.Debug("connected to boltz stream")
		if len(swapIds) > 0 {
			if err := ws.Subscribe(swapIds); err != nil {
				log.WithError(err).Warnf("failed to subscribe to %d swaps", len(swapIds))
			}
		}

		for update := range ws.Updates {
			log.Debugf("received %s for swap %s", update.Status, update.Id)
			go h.onUpdate(update)
		}
		log.Debug("boltz stream closed")
	}()
}

func (h *subscriptionHandler) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelRetry != nil {
		h.cancelRetry()
		h.cancelRetry = nil
	}
	if h.ws != nil {
		if err := h.ws.Close(); err != nil {
			log.WithError(err).Debug("failed to close boltz stream")
		}
		h.ws = nil
	}
	h.connected = false
}
