/*
Package redispubsub implements the subscription receiver. It owns a
dedicated connection in subscription mode for its whole lifetime; the
connection never returns to a pool.
*/
package redispubsub

import (
	"context"

	"github.com/Tronic/redio/redis"
	"github.com/Tronic/redio/redisconn"
)

// DialFunc opens the dedicated connection on first use.
type DialFunc func(ctx context.Context) (*redisconn.Conn, error)

// Message is what Next yields when WithChannel is enabled.
type Message struct {
	// Channel the message was published to (not the pattern that matched).
	Channel string
	// Payload decoded according to the receiver's decoding mode.
	Payload interface{}
}

// PubSub is a publish/subscribe receiver. Subscriptions requested with
// Subscribe and PSubscribe take effect on the next Next call. Decoding
// modifiers persist across messages, unlike on a DB buffer.
type PubSub struct {
	dial DialFunc
	conn *redisconn.Conn

	mode        redis.Mode
	withChannel bool

	pendingSub  []string
	pendingPSub []string
	subscribed  map[string]bool
	psubscribed map[string]bool

	queued []interface{}
	err    error
}

// New builds a receiver that will subscribe to the given channels. The
// connection is dialed lazily on the first Next.
func New(dial DialFunc, channels ...string) *PubSub {
	return &PubSub{
		dial:        dial,
		pendingSub:  append([]string(nil), channels...),
		subscribed:  map[string]bool{},
		psubscribed: map[string]bool{},
	}
}

// Subscribe adds channels; takes effect on the next Next call.
func (ps *PubSub) Subscribe(channels ...string) *PubSub {
	ps.pendingSub = append(ps.pendingSub, channels...)
	return ps
}

// PSubscribe adds channel patterns; takes effect on the next Next call.
func (ps *PubSub) PSubscribe(patterns ...string) *PubSub {
	ps.pendingPSub = append(ps.pendingPSub, patterns...)
	return ps
}

// StrDecode decodes payloads as UTF-8 strings with surrogate escapes. The
// mode sticks until changed.
func (ps *PubSub) StrDecode() *PubSub {
	ps.mode = redis.ModeStr
	return ps
}

// AutoDecode decodes payloads as UTF-8 and parses JSON documents and
// numbers. The mode sticks until changed.
func (ps *PubSub) AutoDecode() *PubSub {
	ps.mode = redis.ModeAuto
	return ps
}

// FullDecode is an alias of AutoDecode.
func (ps *PubSub) FullDecode() *PubSub {
	return ps.AutoDecode()
}

// WithChannel makes Next yield Message values carrying the channel name.
func (ps *PubSub) WithChannel() *PubSub {
	ps.withChannel = true
	return ps
}

// Next blocks until one message arrives and returns its decoded payload, or
// a Message when WithChannel is set. Subscription acknowledgements are
// consumed internally. A receiver whose connection broke keeps returning
// the same error.
func (ps *PubSub) Next(ctx context.Context) (interface{}, error) {
	if ps.err != nil {
		return nil, ps.err
	}
	v, err := ps.next(ctx)
	if err != nil {
		ps.err = err
		if ps.conn != nil {
			ps.conn.Close()
			ps.conn = nil
		}
		return nil, err
	}
	return v, nil
}

func (ps *PubSub) next(ctx context.Context) (interface{}, error) {
	if err := ps.connect(ctx); err != nil {
		return nil, err
	}
	for {
		frame, err := ps.read(ctx)
		if err != nil {
			return nil, err
		}
		arr, ok := frame.([]interface{})
		if !ok || len(arr) < 3 || len(arr) > 4 {
			return nil, redis.ErrProtocol.New("unexpected frame in subscription mode: %v", frame)
		}
		kind, _ := arr[0].([]byte)
		switch string(kind) {
		case "message":
			return ps.deliver(arr[1], arr[2]), nil
		case "pmessage":
			return ps.deliver(arr[2], arr[3]), nil
		case "subscribe", "psubscribe", "unsubscribe", "punsubscribe":
			if err := ps.bookkeep(arr); err != nil {
				return nil, err
			}
		default:
			return nil, redis.ErrProtocol.New("unexpected frame in subscription mode: %v", frame)
		}
	}
}

func (ps *PubSub) deliver(channel, payload interface{}) interface{} {
	msg := redis.DecodeReply(payload, ps.mode)
	if !ps.withChannel {
		return msg
	}
	ch, _ := channel.([]byte)
	return Message{Channel: redis.SurrogateEscape(ch), Payload: msg}
}

// connect dials on first use and flushes pending subscription requests,
// consuming their acknowledgements before any message is returned.
func (ps *PubSub) connect(ctx context.Context) error {
	if ps.conn == nil {
		conn, err := ps.dial(ctx)
		if err != nil {
			return err
		}
		ps.conn = conn
		ps.conn.EnterSubscription()
	}
	if len(ps.pendingSub) == 0 && len(ps.pendingPSub) == 0 {
		return nil
	}
	var cmds []redis.Command
	waiting := map[string]bool{}
	for _, ch := range ps.pendingSub {
		waiting["s:"+ch] = true
	}
	for _, ch := range ps.pendingPSub {
		waiting["p:"+ch] = true
	}
	if len(ps.pendingSub) > 0 {
		cmds = append(cmds, redis.Req("SUBSCRIBE", toArgs(ps.pendingSub)...))
	}
	if len(ps.pendingPSub) > 0 {
		cmds = append(cmds, redis.Req("PSUBSCRIBE", toArgs(ps.pendingPSub)...))
	}
	ps.pendingSub = nil
	ps.pendingPSub = nil
	if err := ps.conn.SendOnly(ctx, cmds...); err != nil {
		return err
	}
	for len(waiting) > 0 {
		frame, err := ps.conn.ReadReply(ctx)
		if err != nil {
			return err
		}
		arr, ok := frame.([]interface{})
		if !ok || len(arr) < 3 {
			return redis.ErrProtocol.New("unexpected frame in subscription mode: %v", frame)
		}
		kind, _ := arr[0].([]byte)
		switch string(kind) {
		case "subscribe", "psubscribe":
			ch, _ := arr[1].([]byte)
			prefix := "s:"
			if string(kind) == "psubscribe" {
				prefix = "p:"
			}
			delete(waiting, prefix+string(ch))
			if err := ps.bookkeep(arr); err != nil {
				return err
			}
		case "message", "pmessage":
			// A message can race ahead of the final ack; keep it for Next.
			ps.queued = append(ps.queued, frame)
		default:
			if err := ps.bookkeep(arr); err != nil {
				return err
			}
		}
	}
	return nil
}

// bookkeep applies one subscription acknowledgement and cross-checks the
// server's subscription count against our own.
func (ps *PubSub) bookkeep(arr []interface{}) error {
	kind, _ := arr[0].([]byte)
	ch, _ := arr[1].([]byte)
	switch string(kind) {
	case "subscribe":
		ps.subscribed[string(ch)] = true
	case "psubscribe":
		ps.psubscribed[string(ch)] = true
	case "unsubscribe":
		delete(ps.subscribed, string(ch))
	case "punsubscribe":
		delete(ps.psubscribed, string(ch))
	}
	count, ok := arr[len(arr)-1].(int64)
	if !ok || int(count) != len(ps.subscribed)+len(ps.psubscribed) {
		return redis.ErrProtocol.New("subscription tracking out of sync: server says %v, tracking %d",
			arr[len(arr)-1], len(ps.subscribed)+len(ps.psubscribed))
	}
	return nil
}

func (ps *PubSub) read(ctx context.Context) (interface{}, error) {
	if len(ps.queued) > 0 {
		frame := ps.queued[0]
		ps.queued = ps.queued[1:]
		return frame, nil
	}
	return ps.conn.ReadReply(ctx)
}

// Close unsubscribes and shuts the connection down. The receiver cannot be
// reused.
func (ps *PubSub) Close() error {
	if ps.err == nil {
		ps.err = redis.ErrState.New("receiver is closed")
	}
	if ps.conn == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if len(ps.subscribed) > 0 {
		ps.conn.SendOnly(ctx, redis.Req("UNSUBSCRIBE"))
	}
	if len(ps.psubscribed) > 0 {
		ps.conn.SendOnly(ctx, redis.Req("PUNSUBSCRIBE"))
	}
	err := ps.conn.Close()
	ps.conn = nil
	return err
}

func toArgs(channels []string) []interface{} {
	args := make([]interface{}, len(channels))
	for i, ch := range channels {
		args[i] = ch
	}
	return args
}
