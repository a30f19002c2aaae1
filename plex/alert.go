package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Notification type discriminators carried by Notification.Type.
const (
	NotificationActivity = "activity"
	NotificationPlaying  = "playing"
	NotificationProgress = "progress"
	NotificationStatus   = "status"
	NotificationTimeline = "timeline"
)

// Timeline entry states.
const (
	TimelineStateCreated             = 0
	TimelineStateProcessing          = 1
	TimelineStateMatching            = 2
	TimelineStateDownloadingMetadata = 3
	TimelineStateProcessingMetadata  = 4
	TimelineStateCompleted           = 5
	TimelineStateDeleted             = 9
)

// Notification is one event frame from the server's notification socket.
// Type names the variant; the matching slice carries its payload entries.
type Notification struct {
	Type string `json:"type"`
	Size int    `json:"size"`

	PlaySessionState []PlaySessionStateNotification `json:"PlaySessionStateNotification"`
	Timeline         []TimelineEntry                `json:"TimelineEntry"`
	Activities       []ActivityNotification         `json:"ActivityNotification"`
	Statuses         []StatusNotification           `json:"StatusNotification"`
	Progress         []ProgressNotification         `json:"ProgressNotification"`
}

// PlaySessionStateNotification reports a playback state change: a session
// started, paused, resumed, stopped or advanced its play position.
type PlaySessionStateNotification struct {
	SessionKey       string `json:"sessionKey"`
	ClientIdentifier string `json:"clientIdentifier"`
	GUID             string `json:"guid"`
	Key              string `json:"key"`
	RatingKey        string `json:"ratingKey"`
	URL              string `json:"url"`
	State            string `json:"state"`
	ViewOffset       int64  `json:"viewOffset"`
	PlayQueueItemID  int64  `json:"playQueueItemID"`
	TranscodeSession string `json:"transcodeSession"`
}

// TimelineEntry reports library activity: an item moving through metadata
// processing, or being deleted.
type TimelineEntry struct {
	ItemID        int    `json:"itemID"`
	Identifier    string `json:"identifier"`
	Title         string `json:"title"`
	State         int    `json:"state"`
	Type          int    `json:"type"`
	MetadataState string `json:"metadataState"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// Activity is a long-running server task.
type Activity struct {
	UUID        string `json:"uuid"`
	Type        string `json:"type"`
	Cancellable bool   `json:"cancellable"`
	UserID      int    `json:"userID"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Progress    int    `json:"progress"`
}

// ActivityNotification reports progress of a long-running server task.
type ActivityNotification struct {
	Event    string   `json:"event"`
	UUID     string   `json:"uuid"`
	Activity Activity `json:"Activity"`
}

// StatusNotification is a freeform server status message.
type StatusNotification struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	NotificationName string `json:"notificationName"`
}

// ProgressNotification is a freeform progress message.
type ProgressNotification struct {
	Message string `json:"message"`
}

// ListenerState is the lifecycle state of an AlertListener.
type ListenerState int32

const (
	StateDisconnected ListenerState = iota
	StateConnecting
	StateConnected
)

func (s ListenerState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	defaultAlertQueueSize = 256
	defaultBackoffMin     = time.Second
	defaultBackoffMax     = 30 * time.Second
)

// AlertListener streams notifications from the server's websocket endpoint
// to a callback. One goroutine reads frames into a bounded queue, a second
// drains the queue into the callback, so a slow callback exerts backpressure
// on the socket instead of growing memory without bound.
//
// The callback runs on the dispatch goroutine and must not block
// indefinitely. A listener is one-shot: once stopped it cannot be started
// again.
type AlertListener struct {
	srv      *Server
	callback func(Notification)
	onError  func(error)
	logger   zerolog.Logger

	queueSize  int
	backoffMin time.Duration
	backoffMax time.Duration

	queue   chan Notification
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool
	stopped bool
	state   atomic.Int32

	connMu sync.Mutex
	conn   *websocket.Conn
}

// AlertOption configures optional listener behavior.
type AlertOption func(*AlertListener)

// WithAlertQueueSize bounds the number of undispatched notifications held
// in memory. When the queue is full the reader blocks, exerting
// backpressure on the socket.
func WithAlertQueueSize(n int) AlertOption {
	return func(l *AlertListener) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// WithAlertBackoff sets the reconnect backoff window. Failed reconnects
// back off exponentially from min to max; a successful connection resets
// the delay.
func WithAlertBackoff(min, max time.Duration) AlertOption {
	return func(l *AlertListener) {
		if min > 0 {
			l.backoffMin = min
		}
		if max >= l.backoffMin {
			l.backoffMax = max
		}
	}
}

// WithAlertErrorHandler registers a callback for undecodable frames,
// connection drops and callback panics. Without one, errors surface only in
// the session's log.
func WithAlertErrorHandler(fn func(error)) AlertOption {
	return func(l *AlertListener) {
		l.onError = fn
	}
}

// NewAlertListener builds a listener delivering the server's notification
// stream to callback. Start connects it.
func NewAlertListener(srv *Server, callback func(Notification), opts ...AlertOption) *AlertListener {
	l := &AlertListener{
		srv:        srv,
		callback:   callback,
		logger:     srv.logger.With().Str("component", "alerts").Logger(),
		queueSize:  defaultAlertQueueSize,
		backoffMin: defaultBackoffMin,
		backoffMax: defaultBackoffMax,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.queue = make(chan Notification, l.queueSize)
	return l
}

// Start dials the notification socket and begins delivering events. The
// initial dial happens synchronously so a bad address or token fails here
// rather than in the background; afterwards dropped connections reconnect
// with exponential backoff until Stop is called or ctx is cancelled.
func (l *AlertListener) Start(ctx context.Context) error {
	if l.callback == nil {
		return fmt.Errorf("%w: alert listener needs a callback", ErrInvalidConfig)
	}
	l.startMu.Lock()
	defer l.startMu.Unlock()
	if l.started {
		return fmt.Errorf("alert listener already started")
	}

	l.state.Store(int32(StateConnecting))
	conn, err := l.dial(ctx)
	if err != nil {
		l.state.Store(int32(StateDisconnected))
		return err
	}
	l.setConn(conn)
	l.state.Store(int32(StateConnected))
	l.logger.Debug().Msg("alert listener connected")

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.started = true
	l.wg.Add(2)
	go l.readLoop(runCtx)
	go l.dispatchLoop()
	return nil
}

// Stop closes the connection and waits for queued notifications to drain.
// When Stop returns no further callback will run. Stopping a listener that
// never started is a no-op.
func (l *AlertListener) Stop() {
	l.startMu.Lock()
	if !l.started || l.stopped {
		l.startMu.Unlock()
		return
	}
	l.stopped = true
	l.startMu.Unlock()

	l.cancel()
	if conn := l.currentConn(); conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	l.wg.Wait()
	l.state.Store(int32(StateDisconnected))
	l.logger.Debug().Msg("alert listener stopped")
}

// State returns the listener's connection state.
func (l *AlertListener) State() ListenerState {
	return ListenerState(l.state.Load())
}

func (l *AlertListener) setConn(conn *websocket.Conn) {
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
}

func (l *AlertListener) currentConn() *websocket.Conn {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	return l.conn
}

func (l *AlertListener) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := l.srv.alertURL()
	dialer := websocket.Dialer{HandshakeTimeout: l.srv.httpClient.Timeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, l.srv.headers())
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				URL:        endpoint,
				Body:       strings.TrimSpace(string(body)),
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, nil
}

// readLoop reads frames into the queue, reconnecting on connection loss.
// Closing the queue on exit releases the dispatcher.
func (l *AlertListener) readLoop(ctx context.Context) {
	defer l.wg.Done()
	defer close(l.queue)

	backoff := l.backoffMin
	for {
		conn := l.currentConn()
		if conn == nil {
			l.state.Store(int32(StateConnecting))
			var err error
			conn, err = l.dial(ctx)
			if err != nil {
				if ctx.Err() != nil {
					l.state.Store(int32(StateDisconnected))
					return
				}
				l.reportError(fmt.Errorf("alert reconnect: %w", err))
				select {
				case <-ctx.Done():
					l.state.Store(int32(StateDisconnected))
					return
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, l.backoffMax)
				continue
			}
			l.setConn(conn)
			l.state.Store(int32(StateConnected))
			l.logger.Debug().Msg("alert listener reconnected")
			backoff = l.backoffMin
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			l.setConn(nil)
			if ctx.Err() != nil {
				l.state.Store(int32(StateDisconnected))
				return
			}
			l.reportError(fmt.Errorf("alert read: %w", err))
			continue
		}

		n, err := decodeAlert(data)
		if err != nil {
			l.reportError(err)
			continue
		}
		select {
		case l.queue <- n:
		case <-ctx.Done():
			l.state.Store(int32(StateDisconnected))
			return
		}
	}
}

// dispatchLoop drains the queue into the callback in arrival order.
func (l *AlertListener) dispatchLoop() {
	defer l.wg.Done()
	for n := range l.queue {
		l.deliver(n)
	}
}

func (l *AlertListener) deliver(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			l.reportError(fmt.Errorf("alert callback panic: %v", r))
		}
	}()
	l.callback(n)
}

func (l *AlertListener) reportError(err error) {
	l.logger.Debug().Err(err).Msg("alert listener error")
	if l.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("alert error handler panic")
		}
	}()
	l.onError(err)
}

func decodeAlert(data []byte) (Notification, error) {
	var frame struct {
		Container *Notification `json:"NotificationContainer"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return Notification{}, fmt.Errorf("%w: undecodable alert frame: %v", ErrSchemaMismatch, err)
	}
	if frame.Container == nil {
		return Notification{}, fmt.Errorf("%w: alert frame carries no NotificationContainer", ErrSchemaMismatch)
	}
	if frame.Container.Type == "" {
		return Notification{}, fmt.Errorf("%w: alert frame carries no type", ErrSchemaMismatch)
	}
	return *frame.Container, nil
}

// alertURL is the websocket flavor of the session's base URL pointed at the
// notifications endpoint. Browsers cannot set headers on websocket dials so
// PMS also accepts the token as a query parameter; sending both is fine.
func (s *Server) alertURL() string {
	endpoint := strings.Replace(s.baseURL, "http", "ws", 1) + "/:/websockets/notifications"
	if s.token != "" {
		endpoint += "?X-Plex-Token=" + url.QueryEscape(s.token)
	}
	return endpoint
}
