package boltz

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
)

const (
	reconnectInterval = 15 * time.Second
	pingInterval      = 30 * time.Second
	pongWait          = 5 * time.Second
	subscribeTimeout  = 5 * time.Second
	updatesBufferSize = 16
)

var ErrWebsocketClosed = swaperr.ErrNetwork.New("websocket is closed")

// Websocket streams swap status updates. Updates is closed once Close is
// called and every reader has returned; the connection is re-established
// on failure and subscriptions are replayed.
type Websocket struct {
	Updates chan SwapUpdate

	apiUrl            string
	dialer            *websocket.Dialer
	subscriptions     chan bool
	reconnectInterval time.Duration

	// Readers still able to send on Updates.
	readers sync.WaitGroup
	done    chan struct{}

	lock    sync.Mutex
	conn    *websocket.Conn
	closed  bool
	swapIds []string
}

type wsResponse struct {
	Event   string `json:"event"`
	Error   string `json:"error"`
	Channel string `json:"channel"`
	Args    []any  `json:"args"`
}

func (boltz *Api) NewWebsocket() *Websocket {
	httpTransport, ok := boltz.Client.Transport.(*http.Transport)

	dialer := *websocket.DefaultDialer
	if ok {
		dialer.Proxy = httpTransport.Proxy
	}

	wsUrl := boltz.WSURL
	if wsUrl == "" {
		wsUrl = boltz.URL
	}

	return &Websocket{
		Updates:           make(chan SwapUpdate, updatesBufferSize),
		apiUrl:            wsUrl,
		dialer:            &dialer,
		subscriptions:     make(chan bool, 1),
		reconnectInterval: reconnectInterval,
		done:              make(chan struct{}),
	}
}

func (boltz *Websocket) Connect() error {
	wsUrl, err := url.Parse(boltz.apiUrl)
	if err != nil {
		return swaperr.ErrInput.Wrapf(err, "invalid boltz ws url %s", boltz.apiUrl)
	}
	wsUrl.Path += "/v2/ws"

	if wsUrl.Scheme == "https" {
		wsUrl.Scheme = "wss"
	} else if wsUrl.Scheme == "http" {
		wsUrl.Scheme = "ws"
	}

	conn, _, err := boltz.dialer.Dial(wsUrl.String(), nil)
	if err != nil {
		return swaperr.ErrNetwork.Wrapf(err, "could not connect to boltz ws at %s", wsUrl)
	}

	boltz.lock.Lock()
	if boltz.closed {
		boltz.lock.Unlock()
		conn.Close()
		return ErrWebsocketClosed
	}
	boltz.conn = conn
	boltz.readers.Add(1)
	swapIds := slices.Clone(boltz.swapIds)
	boltz.lock.Unlock()

	setDeadline := func() error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
	_ = setDeadline()
	conn.SetPongHandler(func(string) error {
		return setDeadline()
	})

	go boltz.ping(conn)
	go boltz.read(conn)

	if err := boltz.subscribe(swapIds); err != nil {
		log.WithError(err).Warnf("boltz ws: failed to resubscribe to %d swaps", len(swapIds))
	}
	return nil
}

func (boltz *Websocket) ping(conn *websocket.Conn) {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for range pingTicker.C {
		// Will not wait longer with writing than for the response
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongWait))
		if err != nil {
			return
		}
	}
}

func (boltz *Websocket) read(conn *websocket.Conn) {
	defer boltz.readers.Done()

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("boltz ws: connection dropped")
			break
		}
		if msgType == websocket.TextMessage {
			boltz.handleMessage(message)
		}
	}

	for {
		boltz.lock.Lock()
		closed := boltz.closed
		replaced := boltz.conn != conn
		boltz.lock.Unlock()

		if closed || replaced {
			return
		}

		select {
		case <-boltz.done:
			return
		case <-time.After(boltz.reconnectInterval):
		}
		err := boltz.Connect()
		if err == nil {
			return
		}
		log.WithError(err).Warn("boltz ws: failed to reconnect")
	}
}

func (boltz *Websocket) handleMessage(message []byte) {
	var response wsResponse
	if err := json.Unmarshal(message, &response); err != nil {
		log.WithError(err).Debug("boltz ws: skipping malformed message")
		return
	}
	log.Debugf("boltz ws: received %s event on %s", response.Event, response.Channel)
	if response.Error != "" {
		log.Warnf("boltz ws: %s", response.Error)
		return
	}

	switch response.Event {
	case "update":
		if response.Channel != "swap.update" {
			return
		}
		for _, arg := range response.Args {
			var update SwapUpdate
			if err := mapstructure.Decode(arg, &update); err != nil {
				log.WithError(err).Warn("boltz ws: invalid swap update")
				continue
			}
			select {
			case boltz.Updates <- update:
			case <-boltz.done:
				return
			}
		}
	case "subscribe":
		select {
		case boltz.subscriptions <- true:
		default:
		}
	}
}

func (boltz *Websocket) subscribe(swapIds []string) error {
	if len(swapIds) == 0 {
		return nil
	}

	// Drop a stale acknowledgement of a timed out subscription.
	select {
	case <-boltz.subscriptions:
	default:
	}

	boltz.lock.Lock()
	if boltz.closed {
		boltz.lock.Unlock()
		return ErrWebsocketClosed
	}
	if boltz.conn == nil {
		boltz.lock.Unlock()
		return swaperr.ErrNetwork.New("websocket is not connected")
	}
	err := boltz.conn.WriteJSON(map[string]any{
		"op":      "subscribe",
		"channel": "swap.update",
		"args":    swapIds,
	})
	boltz.lock.Unlock()
	if err != nil {
		return swaperr.ErrNetwork.Wrap(err, "failed to subscribe")
	}

	select {
	case <-boltz.subscriptions:
		return nil
	case <-time.After(subscribeTimeout):
		return swaperr.ErrNetwork.New("no answer from boltz")
	}
}

func (boltz *Websocket) Subscribe(swapIds []string) error {
	if err := boltz.subscribe(swapIds); err != nil {
		if errors.Is(err, ErrWebsocketClosed) {
			return err
		}
		// the connection might be dead, so forcefully reconnect
		if err := boltz.Reconnect(); err != nil {
			return swaperr.Wrap(err, "could not reconnect boltz ws")
		}
		if err := boltz.subscribe(swapIds); err != nil {
			return err
		}
	}

	boltz.lock.Lock()
	defer boltz.lock.Unlock()
	for _, id := range swapIds {
		if !slices.Contains(boltz.swapIds, id) {
			boltz.swapIds = append(boltz.swapIds, id)
		}
	}
	return nil
}

func (boltz *Websocket) Unsubscribe(swapId string) {
	boltz.lock.Lock()
	defer boltz.lock.Unlock()
	boltz.swapIds = slices.DeleteFunc(boltz.swapIds, func(id string) bool {
		return id == swapId
	})
}

func (boltz *Websocket) Close() error {
	boltz.lock.Lock()
	defer boltz.lock.Unlock()
	if boltz.closed {
		return nil
	}
	boltz.closed = true
	close(boltz.done)

	go func() {
		boltz.readers.Wait()
		close(boltz.Updates)
	}()

	if boltz.conn == nil {
		return nil
	}
	return boltz.conn.Close()
}

func (boltz *Websocket) Reconnect() error {
	boltz.lock.Lock()
	if boltz.closed {
		boltz.lock.Unlock()
		return ErrWebsocketClosed
	}
	conn := boltz.conn
	boltz.conn = nil
	boltz.lock.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.WithError(err).Debug("boltz ws: failed to close connection")
		}
	}
	return boltz.Connect()
}
