package redisconn

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/Tronic/redio/redis"
)

// Conn is a single pipelined connection to redis. It buffers enqueued
// commands, writes them out in one flush and reads exactly one reply per
// command, in order. A Conn is single-owner: exactly one goroutine may use
// it between acquire and release.
//
// The clean bit starts true and is cleared by any IO or protocol error,
// cancellation mid-batch, or entry into subscription mode. Only clean
// connections may return to a pool.
type Conn struct {
	cfg Config

	c  net.Conn
	r  *redis.Reader
	io *deadlineIO

	wbuf     []byte
	inflight []redis.Command

	clean      bool
	subscribed bool
}

// Dial connects, optionally wraps TLS, and runs the AUTH/SELECT handshake.
// Handshake failures carry TraitHandshake: retrying them is pointless.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:" + DefaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger
	}

	cfg.Logger.Report(LogConnecting, nil, cfg.Addr)

	d := net.Dialer{Timeout: cfg.DialTimeout}
	nc, err := d.DialContext(ctx, cfg.Network, cfg.Addr)
	if err != nil {
		err = redis.ErrConnect.Wrap(err, "could not connect").WithProperty(redis.EKAddress, cfg.Addr)
		cfg.Logger.Report(LogConnectFailed, nil, err)
		return nil, err
	}
	if cfg.UseTLS {
		tlsConf := cfg.TLSConfig
		if tlsConf == nil {
			tlsConf = &tls.Config{}
		} else {
			tlsConf = tlsConf.Clone()
		}
		if tlsConf.ServerName == "" {
			tlsConf.ServerName = cfg.ServerName
		}
		tc := tls.Client(nc, tlsConf)
		hctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		err := tc.HandshakeContext(hctx)
		cancel()
		if err != nil {
			nc.Close()
			err := redis.ErrConnectSetup.Wrap(err, "TLS handshake failed").
				WithProperty(redis.EKAddress, cfg.Addr)
			cfg.Logger.Report(LogConnectFailed, nil, err)
			return nil, err
		}
		nc = tc
	}

	conn := &Conn{cfg: cfg, c: nc, clean: true}
	conn.io = newDeadlineIO(nc, cfg.IOTimeout)
	conn.r = redis.NewReader(conn.io)

	if err := conn.handshake(ctx); err != nil {
		conn.Close()
		cfg.Logger.Report(LogConnectFailed, conn, err)
		return nil, err
	}
	cfg.Logger.Report(LogConnected, conn)
	return conn, nil
}

// handshake pipelines AUTH and SELECT and verifies the +OK replies. Server
// errors here invalidate session state, so they are promoted to connect
// errors instead of being returned as values.
func (c *Conn) handshake(ctx context.Context) error {
	var cmds []redis.Command
	if c.cfg.Password != "" {
		cmds = append(cmds, redis.Req("AUTH", c.cfg.Password))
	}
	if c.cfg.DB != 0 {
		cmds = append(cmds, redis.Req("SELECT", c.cfg.DB))
	}
	if len(cmds) == 0 {
		return nil
	}
	for _, cmd := range cmds {
		if err := c.Enqueue(cmd); err != nil {
			return err
		}
	}
	replies, err := c.Flush(ctx)
	if err != nil {
		return redis.ErrConnect.Wrap(err, "connection setup failed").
			WithProperty(redis.EKAddress, c.cfg.Addr)
	}
	for i, r := range replies {
		if s, ok := r.(string); ok && s == "OK" {
			continue
		}
		err := redis.ErrConnectSetup.New("%s during connection setup: %v", cmds[i].Name, r).
			WithProperty(redis.EKAddress, c.cfg.Addr).
			WithProperty(redis.EKCommand, cmds[i].Name)
		if cmds[i].Name == "SELECT" {
			err = err.WithProperty(redis.EKDb, c.cfg.DB)
		}
		c.clean = false
		return err
	}
	return nil
}

// RemoteName returns the address the connection was dialed to.
func (c *Conn) RemoteName() string {
	return c.cfg.Addr
}

// Clean reports whether the connection may be reused for further batches.
func (c *Conn) Clean() bool {
	return c.clean
}

// PendingCount returns the number of enqueued commands awaiting a flush or
// a reply.
func (c *Conn) PendingCount() int {
	return len(c.inflight)
}

// Enqueue encodes one command into the write buffer. Nothing hits the wire
// until Flush. Encoding failures leave both the buffer and the connection
// untouched. Illegal in subscription mode.
func (c *Conn) Enqueue(cmd redis.Command) error {
	if c.subscribed {
		return redis.ErrState.New("regular commands cannot be enqueued in subscription mode")
	}
	buf, err := redis.AppendCommand(c.wbuf, cmd)
	if err != nil {
		return err
	}
	c.wbuf = buf
	c.inflight = append(c.inflight, cmd)
	return nil
}

// Reset drops all buffered commands. Legal only before Flush has written
// them; the connection stays clean because nothing reached the wire.
func (c *Conn) Reset() {
	c.wbuf = c.wbuf[:0]
	c.inflight = c.inflight[:0]
}

// Flush writes the buffered frames and drains one reply per command, in
// command order. Server error replies are embedded in the result slice; IO
// and protocol failures (including ctx cancellation mid-batch) break the
// connection and are returned.
func (c *Conn) Flush(ctx context.Context) ([]interface{}, error) {
	n := len(c.inflight)
	if n == 0 {
		return nil, nil
	}
	res := make([]interface{}, 0, n)
	err := c.withCtx(ctx, func() error {
		if _, err := c.io.Write(c.wbuf); err != nil {
			return redis.ErrIO.Wrap(err, "writing commands failed")
		}
		for i := 0; i < n; i++ {
			v, err := c.r.ReadReply()
			if err != nil {
				return err
			}
			res = append(res, v)
		}
		return nil
	})
	c.wbuf = c.wbuf[:0]
	c.inflight = c.inflight[:0]
	if err != nil {
		c.markBroken(err)
		return nil, err
	}
	return res, nil
}

// EnterSubscription switches the connection into the one-way subscription
// mode. The clean bit is cleared permanently: the connection can never be
// pooled again.
func (c *Conn) EnterSubscription() {
	c.subscribed = true
	c.clean = false
	c.cfg.Logger.Report(LogSubscribed, c)
}

// SendOnly writes commands without reading replies. Only valid in
// subscription mode, where replies arrive asynchronously.
func (c *Conn) SendOnly(ctx context.Context, cmds ...redis.Command) error {
	if !c.subscribed {
		return redis.ErrState.New("SendOnly is only valid in subscription mode")
	}
	var buf []byte
	for _, cmd := range cmds {
		var err error
		if buf, err = redis.AppendCommand(buf, cmd); err != nil {
			return err
		}
	}
	err := c.withCtx(ctx, func() error {
		if _, err := c.io.Write(buf); err != nil {
			return redis.ErrIO.Wrap(err, "writing commands failed")
		}
		return nil
	})
	if err != nil {
		c.markBroken(err)
	}
	return err
}

// ReadReply reads a single frame. Only valid in subscription mode.
func (c *Conn) ReadReply(ctx context.Context) (interface{}, error) {
	if !c.subscribed {
		return nil, redis.ErrState.New("ReadReply is only valid in subscription mode")
	}
	var v interface{}
	err := c.withCtx(ctx, func() error {
		var err error
		v, err = c.r.ReadReply()
		return err
	})
	if err != nil {
		c.markBroken(err)
		return nil, err
	}
	return v, nil
}

// Close shuts the socket down. The connection is unusable afterwards.
func (c *Conn) Close() error {
	c.clean = false
	c.cfg.Logger.Report(LogClosed, c)
	return c.c.Close()
}

func (c *Conn) markBroken(err error) {
	if c.clean || c.subscribed {
		c.cfg.Logger.Report(LogBroken, c, err)
	}
	c.clean = false
}

// withCtx runs op while honouring ctx cancellation: when ctx fires, the
// socket deadline is forced into the past, failing the blocking read or
// write. The batch is lost either way, which is why callers mark the
// connection broken on any error.
func (c *Conn) withCtx(ctx context.Context, op func() error) error {
	if err := ctx.Err(); err != nil {
		return redis.ErrIO.Wrap(err, "batch cancelled")
	}
	stop := context.AfterFunc(ctx, func() {
		c.c.SetDeadline(time.Unix(1, 0))
	})
	err := op()
	if !stop() {
		// ctx fired: attribute the failure to the cancellation and undo
		// the poisoned deadline so Close still works.
		c.c.SetDeadline(time.Time{})
		return redis.ErrIO.Wrap(context.Cause(ctx), "batch cancelled")
	}
	return err
}
