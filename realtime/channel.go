package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carefleet/carefleet-client/internal/config"
	errs "github.com/carefleet/carefleet-client/internal/errors"
)

// ConnState is the channel's connection state. Exactly one value holds at
// a time.
type ConnState string

const (
	StateDisconnected ConnState = "DISCONNECTED"
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
	StateReconnecting ConnState = "RECONNECTING"
)

// Event is delivered to channel observers on every state transition. Err
// is ErrReconnectExhausted when the backoff retries ran out.
type Event struct {
	State ConnState
	Err   error
}

// Handler receives the raw payload of one inbound message on a topic
type Handler func(payload []byte)

// Handle identifies one registered subscription for deterministic,
// leak-free unsubscription
type Handle struct {
	id    string
	topic string
}

type subscription struct {
	id      string
	handler Handler
}

// Channel owns one multiplexed connection to the event-stream endpoint,
// its reconnect policy, and the topic→subscriber registry. Subscriptions
// are client-side durable: they survive reconnection, and the registry
// outlives the connection entirely.
type Channel struct {
	url         string
	base        time.Duration
	maxAttempts int
	dialer      Dialer
	afterFunc   func(time.Duration, func()) *time.Timer // injectable for testing

	mu          sync.Mutex
	state       ConnState
	conn        Conn
	credential  string
	gen         uint64 // bumped by Connect/Disconnect; a superseded handshake discards its result
	attempt     int
	retryTimer  *time.Timer
	subs        map[string][]subscription
	topicParams map[string]any
	observers   []func(Event)
}

// ChannelOption modifies the Channel instance
type ChannelOption func(*Channel)

// WithAfterFunc replaces the reconnect timer source (primarily for testing)
func WithAfterFunc(afterFunc func(time.Duration, func()) *time.Timer) ChannelOption {
	return func(c *Channel) {
		c.afterFunc = afterFunc
	}
}

// NewChannel creates a disconnected channel. Backoff base and attempt cap
// come from configuration.
func NewChannel(cfg config.RealtimeConfig, dialer Dialer, options ...ChannelOption) *Channel {
	c := &Channel{
		url:         cfg.GetRealtimeURL(),
		base:        cfg.GetReconnectBase(),
		maxAttempts: cfg.GetMaxReconnectAttempts(),
		dialer:      dialer,
		afterFunc:   time.AfterFunc,
		state:       StateDisconnected,
		subs:        make(map[string][]subscription),
		topicParams: make(map[string]any),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// State returns the current connection state
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe registers an observer for connection state events
func (c *Channel) Observe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Connect establishes the connection authenticated by accessToken. It is a
// no-op when already connected or connecting with the same credential. An
// explicit Connect resets the retry counter and supersedes any handshake
// still in flight for an older credential.
func (c *Channel) Connect(ctx context.Context, accessToken string) {
	c.mu.Lock()
	if (c.state == StateConnected || c.state == StateConnecting) && c.credential == accessToken {
		c.mu.Unlock()
		return
	}
	c.stopRetryLocked()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.credential = accessToken
	c.gen++
	gen := c.gen
	c.attempt = 0
	notify := c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()
	notify()

	go c.dial(ctx, gen)
}

// Disconnect tears down the transport and cancels any pending reconnect
// timer. The subscription registry is intentionally kept: callers are not
// required to re-subscribe after a later Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.stopRetryLocked()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	notify := c.setStateLocked(StateDisconnected, nil)
	c.mu.Unlock()
	notify()
}

// Subscribe registers handler under topic in registration order. The first
// handler on a topic announces the subscription to the server when
// connected; while connecting or reconnecting it is flushed upon reaching
// CONNECTED.
func (c *Channel) Subscribe(topic string, handler Handler, options ...SubscribeOption) Handle {
	o := subscribeOptions{}
	for _, opt := range options {
		opt(&o)
	}

	id := uuid.NewString()
	c.mu.Lock()
	first := len(c.subs[topic]) == 0
	c.subs[topic] = append(c.subs[topic], subscription{id: id, handler: handler})
	if o.params != nil {
		c.topicParams[topic] = o.params
	}
	var conn Conn
	var msg Message
	announce := false
	if first && c.state == StateConnected && c.conn != nil {
		conn = c.conn
		msg, announce = c.subscribeMessageLocked(topic)
	}
	c.mu.Unlock()

	if announce {
		c.writeControl(conn, msg)
	}
	return Handle{id: id, topic: topic}
}

// Unsubscribe removes exactly the handler behind handle, never its
// siblings on the same topic. Removing a topic's last handler announces
// the unsubscribe to the server where the protocol defines one.
func (c *Channel) Unsubscribe(handle Handle) {
	c.mu.Lock()
	list := c.subs[handle.topic]
	for i, sub := range list {
		if sub.id == handle.id {
			c.subs[handle.topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	var conn Conn
	var msg Message
	announce := false
	if len(c.subs[handle.topic]) == 0 {
		delete(c.subs, handle.topic)
		delete(c.topicParams, handle.topic)
		if event, ok := unsubscribeEvents[handle.topic]; ok && c.state == StateConnected && c.conn != nil {
			conn = c.conn
			msg = Message{Event: event}
			announce = true
		}
	}
	c.mu.Unlock()

	if announce {
		c.writeControl(conn, msg)
	}
}

// Publish emits an outbound event. Outbound telemetry is best-effort: when
// the channel is not connected the event is logged and dropped, never
// blocking or failing the caller.
func (c *Channel) Publish(topic string, payload any) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		log.Warn().Err(errs.ErrChannelNotConnected).Str("topic", topic).Msg("Dropping outbound event")
		return
	}
	if err := conn.WriteJSON(Message{Event: topic, Data: payload}); err != nil {
		log.Err(err).Str("topic", topic).Msg("Failed to write outbound event")
	}
}

// SubscribeOption modifies a subscription
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	params any
}

// WithParams attaches a payload to the topic's subscribe control message
// (e.g. the staffId for assignment subscriptions)
func WithParams(params any) SubscribeOption {
	return func(o *subscribeOptions) {
		o.params = params
	}
}

func (c *Channel) dial(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	credential := c.credential
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.url, credential)
	if err != nil {
		log.Err(err).Msg("Realtime handshake failed")
		c.scheduleReconnect(ctx, gen)
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.state == StateDisconnected {
		// Disconnect or a newer Connect raced the handshake and wins; this
		// transport must not survive it
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.attempt = 0
	// Subscriptions are client-side durable: re-announce every registered
	// topic on each (re)connection
	msgs := c.subscribeMessagesLocked()
	notify := c.setStateLocked(StateConnected, nil)
	c.mu.Unlock()

	for _, msg := range msgs {
		c.writeControl(conn, msg)
	}
	notify()

	go c.readLoop(ctx, conn, gen)
}

func (c *Channel) readLoop(ctx context.Context, conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn != conn {
				// Superseded by Disconnect or a newer Connect
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.mu.Unlock()
			_ = conn.Close()
			c.scheduleReconnect(ctx, gen)
			return
		}
		c.dispatch(data)
	}
}

// dispatch invokes every handler registered for the inbound topic in
// registration order. The handler list is copied before iteration so a
// handler unsubscribing itself mid-dispatch cannot skip or double-invoke a
// sibling.
func (c *Channel) dispatch(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Err(err).Msg("Dropping malformed inbound frame")
		return
	}
	if validatePayload, ok := payloadValidators[frame.Event]; ok {
		if err := validatePayload(frame.Data); err != nil {
			log.Warn().Err(err).Str("topic", frame.Event).Msg("Dropping invalid inbound payload")
			return
		}
	}

	c.mu.Lock()
	subs := append([]subscription(nil), c.subs[frame.Event]...)
	c.mu.Unlock()

	for _, sub := range subs {
		c.invoke(frame.Event, sub, frame.Data)
	}
}

// invoke isolates handler panics so one failing handler never prevents
// delivery to the next
func (c *Channel) invoke(topic string, sub subscription, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("topic", topic).Interface("panic", r).Msg("Subscriber panicked")
		}
	}()
	sub.handler(payload)
}

// scheduleReconnect applies the exponential backoff policy: delay doubles
// each attempt starting at 2×base; exhausting the attempt cap parks the
// channel DISCONNECTED until an explicit Connect.
func (c *Channel) scheduleReconnect(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	if c.attempt >= c.maxAttempts {
		notify := c.setStateLocked(StateDisconnected, errs.ErrReconnectExhausted)
		c.mu.Unlock()
		notify()
		log.Error().Int("attempts", c.maxAttempts).Msg("Realtime reconnect attempts exhausted")
		return
	}
	c.attempt++
	delay := c.base << c.attempt
	notify := c.setStateLocked(StateReconnecting, nil)
	c.retryTimer = c.afterFunc(delay, func() {
		c.redial(ctx, gen)
	})
	c.mu.Unlock()
	notify()
	log.Info().Dur("delay", delay).Int("attempt", c.attempt).Msg("Scheduling realtime reconnect")
}

func (c *Channel) redial(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.dial(ctx, gen)
}

func (c *Channel) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// subscribeMessageLocked builds the control frame announcing interest in
// topic, when the protocol defines one
func (c *Channel) subscribeMessageLocked(topic string) (Message, bool) {
	event, ok := subscribeEvents[topic]
	if !ok {
		return Message{}, false
	}
	msg := Message{Event: event}
	if params, ok := c.topicParams[topic]; ok {
		msg.Data = params
	}
	return msg, true
}

func (c *Channel) subscribeMessagesLocked() []Message {
	msgs := make([]Message, 0, len(c.subs))
	for topic := range c.subs {
		if msg, ok := c.subscribeMessageLocked(topic); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// writeControl runs outside c.mu so a stalled peer cannot block the
// registry or dispatch
func (c *Channel) writeControl(conn Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Err(err).Str("event", msg.Event).Msg("Failed to write control message")
	}
}

func (c *Channel) setStateLocked(state ConnState, err error) func() {
	c.state = state
	observers := append([]func(Event){}, c.observers...)
	event := Event{State: state, Err: err}
	return func() {
		for _, fn := range observers {
			fn(event)
		}
	}
}
