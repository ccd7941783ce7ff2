package netpiano

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

const DEFAULT_PORT = "7529"

// DefaultTopic is the logical channel note and volume messages travel on.
// It is a configuration value; brokers relay any topic name.
const DefaultTopic = "piano"

const (
	defaultAckTimeout       = 5 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	defaultBaseBackoff      = 500 * time.Millisecond
	defaultMaxBackoff       = 8 * time.Second
	defaultMaxRetries       = 5
)

// PublishResult is the asynchronous outcome of a single publish attempt.
// Err is nil when the broker acked the message (or immediately for
// fire-and-forget publishes).
type PublishResult struct {
	ID    int64
	Topic string
	Err   error
}

// transport bundles one dialed connection with its reader and a lost signal
// so both loops and the supervisor agree on which connection died.
type transport struct {
	conn     net.Conn
	reader   *bufio.Reader
	lost     chan struct{}
	lostOnce sync.Once
}

func newTransport(conn net.Conn) *transport {
	return &transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		lost:   make(chan struct{}),
	}
}

func (t *transport) markLost() {
	t.lostOnce.Do(func() { close(t.lost) })
}

type pendingPublish struct {
	timer *time.Timer
}

// Client owns the broker connection lifecycle: dialing, the topic
// subscription, publish delivery with acks, and reconnection with bounded
// exponential backoff after a transport drop.
type Client struct {
	host     string
	port     string
	topic    string
	clientID string

	useTLS    bool
	tlsConfig *tls.Config

	reconnect   bool
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	ackTimeout  time.Duration

	logger *slog.Logger

	mu      sync.Mutex
	state   ConnState
	closed  bool
	tr      *transport
	nextID  int64
	pending map[int64]*pendingPublish

	eventChan  chan Packet
	stateChan  chan ConnState
	errorChan  chan error
	resultChan chan PublishResult
	sendChan   chan []byte

	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup // read/write loops of the current transport
	swg       sync.WaitGroup // supervisor
}

// NewClient creates a client in the disconnected state. Call Connect to dial
// the broker. An empty port falls back to DEFAULT_PORT, an empty topic to
// DefaultTopic, an empty clientID to a random session id, a nil logger to
// slog.Default().
func NewClient(host, port, topic, clientID string, lgr *slog.Logger) *Client {
	if port == "" {
		port = DEFAULT_PORT
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if clientID == "" {
		clientID = newSessionID()
	}
	if lgr == nil {
		lgr = slog.Default()
	}
	return &Client{
		host:        host,
		port:        port,
		topic:       topic,
		clientID:    clientID,
		reconnect:   true,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		ackTimeout:  defaultAckTimeout,
		logger:      lgr,
		state:       StateDisconnected,
		pending:     make(map[int64]*pendingPublish),
		eventChan:   make(chan Packet, 1000),
		stateChan:   make(chan ConnState, 16),
		errorChan:   make(chan error, 16),
		resultChan:  make(chan PublishResult, 100),
		sendChan:    make(chan []byte, 100),
		closeChan:   make(chan struct{}),
	}
}

// Topic returns the logical channel this client publishes and subscribes on.
func (c *Client) Topic() string { return c.topic }

// ClientID returns the per-session client identifier.
func (c *Client) ClientID() string { return c.clientID }

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// States delivers connection state changes for display. Slow consumers miss
// intermediate states, never the channel itself.
func (c *Client) States() <-chan ConnState {
	return c.stateChan
}

// Events delivers packets relayed on the subscribed topic.
func (c *Client) Events() <-chan Packet {
	return c.eventChan
}

// Errors delivers reported, non-fatal errors: connection drops, broker
// errors, subscription failures.
func (c *Client) Errors() <-chan error {
	return c.errorChan
}

// Results delivers the asynchronous outcome of publish attempts.
func (c *Client) Results() <-chan PublishResult {
	return c.resultChan
}

// Connect dials the broker, performs the hello/subscribe handshake and
// starts the read and write loops. On failure the client returns to
// the disconnected state and stays usable; Connect may be called again.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.state != StateDisconnected {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect called in state %s", st)
	}
	c.state = StateConnecting
	c.notifyStateLocked()
	c.mu.Unlock()

	t, err := c.dialAndSubscribe()
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	c.tr = t
	c.state = StateConnected
	c.notifyStateLocked()
	c.mu.Unlock()

	c.startLoops(t)
	c.swg.Add(1)
	go c.supervise(t)
	c.logger.Info("connected to broker", "host", c.host, "port", c.port, "topic", c.topic, "client_id", c.clientID)
	return nil
}

// Publish sends a note or volume message on the topic. It never blocks on
// the network; with QoSAtLeastOnce the outcome arrives on Results once the
// broker acks or the ack timeout fires. While not connected the message is
// dropped and a PublishError returned.
func (c *Client) Publish(body NoteMessage, qos QoS) (int64, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return 0, &PublishError{Topic: c.topic, Err: ErrNotConnected}
	}
	c.nextID++
	id := c.nextID
	pkt, err := NewPublishPacket(c.topic, id, qos, body)
	if err != nil {
		c.mu.Unlock()
		return 0, &PublishError{Topic: c.topic, ID: id, Err: err}
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		c.mu.Unlock()
		return 0, &PublishError{Topic: c.topic, ID: id, Err: err}
	}
	if qos == QoSAtLeastOnce {
		timer := time.AfterFunc(c.ackTimeout, func() {
			c.resolvePending(id, fmt.Errorf("ack timeout after %s", c.ackTimeout))
		})
		c.pending[id] = &pendingPublish{timer: timer}
	}
	c.mu.Unlock()

	select {
	case c.sendChan <- data:
	default:
		err := fmt.Errorf("send queue full")
		c.resolvePending(id, err)
		return 0, &PublishError{Topic: c.topic, ID: id, Err: err}
	}
	c.logger.Debug("queued publish", "id", id, "body", body.String())
	if qos == QoSAtMostOnce {
		c.sendResult(PublishResult{ID: id, Topic: c.topic})
	}
	return id, nil
}

// Close tears the client down: stops the loops, fails every pending publish
// and closes the outward channels. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.mu.Lock()
		if c.tr != nil {
			c.tr.conn.Close()
			c.tr.markLost()
		}
		c.mu.Unlock()
		c.wg.Wait()
		c.swg.Wait()

		c.mu.Lock()
		for id, p := range c.pending {
			p.timer.Stop()
			delete(c.pending, id)
			select {
			case c.resultChan <- PublishResult{ID: id, Topic: c.topic, Err: &PublishError{Topic: c.topic, ID: id, Err: fmt.Errorf("client closed")}}:
			default:
			}
		}
		c.state = StateDisconnected
		c.closed = true
		close(c.eventChan)
		close(c.stateChan)
		close(c.errorChan)
		close(c.resultChan)
		c.mu.Unlock()
		c.logger.Debug("client closed")
	})
}

func (c *Client) dialAndSubscribe() (*transport, error) {
	addr := net.JoinHostPort(c.host, c.port)
	var conn net.Conn
	var err error
	if c.useTLS {
		conn, err = tls.Dial("tcp", addr, c.tlsConfig)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, &ConnectionError{Endpoint: addr, Err: err}
	}
	t := newTransport(conn)
	if err := c.handshake(t); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// handshake sends hello and subscribe, then waits for the subscription
// confirmation. A broker-side subscribe rejection is reported but does not
// fail the connection; outbound publishing still works.
func (c *Client) handshake(t *transport) error {
	addr := net.JoinHostPort(c.host, c.port)
	t.conn.SetDeadline(time.Now().Add(defaultHandshakeTimeout))
	for _, pkt := range []Packet{NewHelloPacket(c.clientID), NewSubscribePacket(c.topic)} {
		data, err := json.Marshal(pkt)
		if err != nil {
			return &ConnectionError{Endpoint: addr, Err: err}
		}
		if _, err := t.conn.Write(append(data, '\n')); err != nil {
			return &ConnectionError{Endpoint: addr, Err: err}
		}
	}
	for {
		data, err := t.reader.ReadBytes('\n')
		if err != nil {
			return &ConnectionError{Endpoint: addr, Err: err}
		}
		pkt, err := ParsePacket(data)
		if err != nil {
			c.logger.Debug("ignoring unparseable packet during handshake", "data", string(data))
			continue
		}
		switch p := pkt.(type) {
		case SubscribedPacket:
			c.logger.Debug("subscribed", "topic", p.Topic)
			t.conn.SetDeadline(time.Time{})
			return nil
		case ErrorPacket:
			c.reportError(&SubscriptionError{Topic: c.topic, Err: fmt.Errorf("%s", p.Message)})
			t.conn.SetDeadline(time.Time{})
			return nil
		case WelcomePacket:
			c.logger.Debug("welcome from broker", "motd", p.MOTD)
		default:
			c.logger.Debug("ignoring packet during handshake", "packet", pkt.String())
		}
	}
}

func (c *Client) startLoops(t *transport) {
	c.wg.Add(2)
	go c.readLoop(t)
	go c.writeLoop(t)
}

func (c *Client) readLoop(t *transport) {
	defer c.wg.Done()
	for {
		data, err := t.reader.ReadBytes('\n')
		if err != nil {
			select {
			case <-c.closeChan:
			default:
				c.reportError(&ConnectionError{Endpoint: net.JoinHostPort(c.host, c.port), Err: err})
			}
			t.markLost()
			return
		}
		c.logger.Debug("received data", "data", string(data))
		pkt, err := ParsePacket(data)
		if err != nil {
			c.logger.Warn("dropping unparseable packet", "error", err)
			continue
		}
		switch p := pkt.(type) {
		case AckPacket:
			c.resolvePending(p.ID, nil)
		case PingPacket:
			// keepalive only, not an event
		case ErrorPacket:
			c.reportError(fmt.Errorf("broker error: %s", p.Message))
		default:
			c.forwardEvent(pkt)
		}
	}
}

func (c *Client) writeLoop(t *transport) {
	defer c.wg.Done()
	for {
		select {
		case <-c.closeChan:
			return
		case <-t.lost:
			return
		case data := <-c.sendChan:
			if _, err := t.conn.Write(append(data, '\n')); err != nil {
				select {
				case <-c.closeChan:
				default:
					c.reportError(&ConnectionError{Endpoint: net.JoinHostPort(c.host, c.port), Err: err})
				}
				t.markLost()
				return
			}
		}
	}
}

// supervise watches the current transport and drives reconnection. It ends
// when the client closes, when reconnection is disabled, or when the retry
// budget is spent.
func (c *Client) supervise(t *transport) {
	defer c.swg.Done()
	for {
		select {
		case <-c.closeChan:
			return
		case <-t.lost:
		}
		select {
		case <-c.closeChan:
			return
		default:
		}
		t.conn.Close()
		c.wg.Wait()
		c.failPending(fmt.Errorf("connection lost"))
		if !c.reconnect {
			c.setState(StateDisconnected)
			return
		}
		c.setState(StateReconnecting)
		nt, err := c.redial()
		if err != nil {
			c.setState(StateDisconnected)
			if err != errClientClosing {
				c.reportError(err)
			}
			return
		}
		select {
		case <-c.closeChan:
			nt.conn.Close()
			return
		default:
		}
		c.mu.Lock()
		c.tr = nt
		c.state = StateConnected
		c.notifyStateLocked()
		c.mu.Unlock()
		c.startLoops(nt)
		c.logger.Info("reconnected to broker", "host", c.host, "port", c.port)
		t = nt
	}
}

var errClientClosing = fmt.Errorf("client closing")

// redial retries dialAndSubscribe with exponential backoff until it succeeds,
// the retry budget is spent, or the client closes.
func (c *Client) redial() (*transport, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		select {
		case <-c.closeChan:
			return nil, errClientClosing
		default:
		}
		t, err := c.dialAndSubscribe()
		if err == nil {
			return t, nil
		}
		lastErr = err
		c.logger.Warn("reconnect attempt failed", "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-c.closeChan:
			return nil, errClientClosing
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
	return nil, &ConnectionError{
		Endpoint: net.JoinHostPort(c.host, c.port),
		Err:      fmt.Errorf("gave up after %d attempts: %w", c.maxRetries, lastErr),
	}
}

// resolvePending completes the publish with the given id exactly once.
func (c *Client) resolvePending(id int64, cause error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	p.timer.Stop()
	delete(c.pending, id)
	res := PublishResult{ID: id, Topic: c.topic}
	if cause != nil {
		res.Err = &PublishError{Topic: c.topic, ID: id, Err: cause}
	}
	select {
	case c.resultChan <- res:
	default:
	}
	c.mu.Unlock()
	if cause != nil {
		c.logger.Warn("publish failed", "id", id, "error", cause)
	} else {
		c.logger.Debug("publish acked", "id", id)
	}
}

func (c *Client) failPending(cause error) {
	c.mu.Lock()
	ids := make([]int64, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.resolvePending(id, cause)
	}
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state == s {
		return
	}
	c.state = s
	c.notifyStateLocked()
}

func (c *Client) notifyStateLocked() {
	select {
	case c.stateChan <- c.state:
	default:
	}
}

func (c *Client) sendResult(res PublishResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.resultChan <- res:
	default:
	}
}

func (c *Client) reportError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.errorChan <- err:
	default:
	}
}

func (c *Client) forwardEvent(pkt Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.eventChan <- pkt:
	default:
	}
}
