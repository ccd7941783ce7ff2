package netpiano

import (
	"crypto/tls"
	"log/slog"
	"time"

	hashids "github.com/speps/go-hashids"
)

type ClientBuilder struct {
	Host     string
	Port     string
	Topic    string
	ClientID string
	Logger   *slog.Logger

	useTLS      bool
	tlsConfig   *tls.Config
	reconnect   bool
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	ackTimeout  time.Duration
}

func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{
		Host:        "localhost",
		Port:        DEFAULT_PORT,
		Topic:       DefaultTopic,
		Logger:      slog.Default(),
		reconnect:   true,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		ackTimeout:  defaultAckTimeout,
	}
}

func (cb *ClientBuilder) WithHost(host string) *ClientBuilder {
	cb.Host = host
	return cb
}

func (cb *ClientBuilder) WithPort(port string) *ClientBuilder {
	cb.Port = port
	return cb
}

func (cb *ClientBuilder) WithTopic(topic string) *ClientBuilder {
	cb.Topic = topic
	return cb
}

func (cb *ClientBuilder) WithClientID(id string) *ClientBuilder {
	cb.ClientID = id
	return cb
}

func (cb *ClientBuilder) WithLogger(logger *slog.Logger) *ClientBuilder {
	cb.Logger = logger
	return cb
}

func (cb *ClientBuilder) WithTLS(cfg *tls.Config) *ClientBuilder {
	cb.useTLS = true
	cb.tlsConfig = cfg
	return cb
}

// WithoutReconnect disables automatic reconnection; a dropped transport
// leaves the client disconnected.
func (cb *ClientBuilder) WithoutReconnect() *ClientBuilder {
	cb.reconnect = false
	return cb
}

// WithBackoff tunes the reconnect schedule: starting delay, cap, and how
// many attempts are made before giving up.
func (cb *ClientBuilder) WithBackoff(base, max time.Duration, retries int) *ClientBuilder {
	cb.baseBackoff = base
	cb.maxBackoff = max
	cb.maxRetries = retries
	return cb
}

func (cb *ClientBuilder) WithAckTimeout(d time.Duration) *ClientBuilder {
	cb.ackTimeout = d
	return cb
}

func (cb *ClientBuilder) Build() *Client {
	c := NewClient(cb.Host, cb.Port, cb.Topic, cb.ClientID, cb.Logger)
	c.useTLS = cb.useTLS
	c.tlsConfig = cb.tlsConfig
	c.reconnect = cb.reconnect
	c.maxRetries = cb.maxRetries
	c.baseBackoff = cb.baseBackoff
	c.maxBackoff = cb.maxBackoff
	c.ackTimeout = cb.ackTimeout
	return c
}

// newSessionID generates a short opaque per-session client identifier.
func newSessionID() string {
	hd := hashids.NewData()
	hd.Salt = "netpiano"
	hd.MinLength = 8
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return "session"
	}
	id, err := h.EncodeInt64([]int64{time.Now().UnixNano()})
	if err != nil {
		return "session"
	}
	return id
}
