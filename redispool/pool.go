package redispool

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/cenkalti/backoff/v5"
	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/joomcode/errorx"

	"github.com/Tronic/redio/redis"
	"github.com/Tronic/redio/redisconn"
	"github.com/Tronic/redio/redispubsub"
)

// DefaultPoolSize bounds live connections when Opts.Size is zero.
const DefaultPoolSize = 16

// Opts tunes the pool. The zero value is usable.
type Opts struct {
	// Size is the maximum number of live pooled connections (default 16).
	Size int
	// DialAttempts caps connection attempts per acquire (default 3).
	// Handshake failures (bad password, bad database) never retry.
	DialAttempts int
	// DialTimeout and IOTimeout are passed through to every connection.
	DialTimeout time.Duration
	IOTimeout   time.Duration
	// TLSConfig overrides the TLS client configuration of connections.
	TLSConfig *tls.Config
	// Logger receives connection lifecycle events.
	Logger redisconn.Logger
}

// Pool hands out single-owner connections dialed from one URL. Idle reuse is
// LIFO, the live count never exceeds Size and only clean connections return
// to the idle list; the rest are closed on release.
type Pool struct {
	cfg   redisconn.Config
	opts  Opts
	inner *pool.ObjectPool

	ctx    context.Context
	cancel context.CancelFunc
}

// New parses url and creates an empty pool. Connections are dialed lazily
// on acquire.
func New(url string, opts Opts) (*Pool, error) {
	cfg, err := redisconn.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if opts.Size == 0 {
		opts.Size = DefaultPoolSize
	}
	if opts.DialAttempts == 0 {
		opts.DialAttempts = 3
	}
	cfg.DialTimeout = opts.DialTimeout
	cfg.IOTimeout = opts.IOTimeout
	if opts.TLSConfig != nil {
		cfg.TLSConfig = opts.TLSConfig
	}
	if opts.Logger != nil {
		cfg.Logger = opts.Logger
	}

	p := &Pool{cfg: cfg, opts: opts}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	poolCfg := pool.NewDefaultPoolConfig()
	poolCfg.MaxTotal = opts.Size
	poolCfg.MaxIdle = opts.Size
	poolCfg.MinIdle = 0
	poolCfg.LIFO = true
	poolCfg.BlockWhenExhausted = true
	poolCfg.TestOnBorrow = false
	poolCfg.TestOnReturn = false
	p.inner = pool.NewObjectPool(p.ctx, &connFactory{p: p}, poolCfg)
	return p, nil
}

// DB returns a command buffer bound to this pool. The connection is
// acquired lazily on its first Do.
func (p *Pool) DB() *DB {
	return &DB{pool: p}
}

// PubSub returns a subscription receiver for the given channels. Its
// connection comes straight from the dialer and is never pooled, so it does
// not count against Size.
func (p *Pool) PubSub(channels ...string) *redispubsub.PubSub {
	return redispubsub.New(p.dialDirect, channels...)
}

// Acquire pops an idle connection, dials a fresh one while below Size, or
// blocks until a release. Fails with ErrPoolClosed after Close.
func (p *Pool) Acquire(ctx context.Context) (*redisconn.Conn, error) {
	obj, err := p.inner.BorrowObject(ctx)
	if err != nil {
		if p.inner.IsClosed() {
			return nil, redis.ErrPoolClosed.New("connection pool is shut down")
		}
		if _, ok := err.(*errorx.Error); ok {
			return nil, err
		}
		return nil, redis.ErrConnect.Wrap(err, "could not acquire connection")
	}
	return obj.(*redisconn.Conn), nil
}

// Release puts conn back on the idle list when it is still clean and
// poolable; otherwise the socket is closed and the slot freed.
func (p *Pool) Release(conn *redisconn.Conn, poolable bool) {
	if poolable && conn.Clean() {
		if p.inner.ReturnObject(p.ctx, conn) == nil {
			return
		}
		// Return can fail when the pool shut down meanwhile; fall through.
	}
	p.inner.InvalidateObject(p.ctx, conn)
}

// Close drains the idle list, closing sockets. Future acquires fail.
func (p *Pool) Close() {
	p.inner.Close(p.ctx)
	p.cancel()
}

// ActiveCount is the number of connections currently lent out.
func (p *Pool) ActiveCount() int {
	return p.inner.GetNumActive()
}

// IdleCount is the number of connections parked on the idle list.
func (p *Pool) IdleCount() int {
	return p.inner.GetNumIdle()
}

// dialDirect opens a connection outside pool accounting (pub/sub).
func (p *Pool) dialDirect(ctx context.Context) (*redisconn.Conn, error) {
	return p.dial(ctx)
}

// dial attempts a connection with exponential backoff. Handshake errors are
// permanent: wrong credentials do not get better with retries.
func (p *Pool) dial(ctx context.Context) (*redisconn.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	return backoff.Retry(ctx, func() (*redisconn.Conn, error) {
		conn, err := redisconn.Dial(ctx, p.cfg)
		if err != nil && errorx.HasTrait(err, redis.TraitHandshake) {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(p.opts.DialAttempts)))
}

// connFactory adapts the dialer to the commons-pool object lifecycle.
type connFactory struct {
	p *Pool
}

func (f *connFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	conn, err := f.p.dial(ctx)
	if err != nil {
		return nil, err
	}
	return pool.NewPooledObject(conn), nil
}

func (f *connFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	return object.Object.(*redisconn.Conn).Close()
}

func (f *connFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	return object.Object.(*redisconn.Conn).Clean()
}

func (f *connFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *connFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}
