package redispool

import (
	"context"
	"strings"

	"github.com/Tronic/redio/redis"
	"github.com/Tronic/redio/redisconn"
)

type txState int

const (
	txNone txState = iota
	txWatch
	txMulti
)

// pending pairs a queued command with the presentation of its reply.
type pending struct {
	cmd    redis.Command
	shape  redis.Shape
	expect string    // ShapeExpect: the simple string to consume
	isExec bool      // EXEC: unpack the transaction result
	exec   []pending // EXEC: deferred handlers of the queued commands
}

// DB is a chainable command buffer over one pooled connection. Commands
// accumulate until Do flushes them in a single pipelined batch, shapes and
// decodes the replies, and releases the connection back to the pool unless a
// transaction is still open or pooling was prevented.
//
// A DB is not safe for concurrent use; like the connection it borrows, it
// has a single owner.
type DB struct {
	pool *Pool
	conn *redisconn.Conn

	cmds           []pending
	multi          []pending
	mode           redis.Mode
	preventPooling bool
	tx             txState
	err            error
}

// Command queues one command. Transaction control names (WATCH, UNWATCH,
// MULTI, EXEC, DISCARD) are routed through the transaction state machine no
// matter how they are spelled.
func (db *DB) Command(name string, args ...interface{}) *DB {
	switch strings.ToUpper(name) {
	case "WATCH":
		return db.Watch(args...)
	case "UNWATCH":
		return db.Unwatch()
	case "MULTI":
		return db.Multi()
	case "EXEC":
		return db.Exec()
	case "DISCARD":
		return db.Discard()
	}
	return db.command(redis.Req(name, args...))
}

func (db *DB) command(cmd redis.Command) *DB {
	shape, expect := redis.ShapeOf(cmd.Name)
	p := pending{cmd: cmd, shape: shape, expect: expect}
	if db.tx == txMulti {
		// The server acks each queued command with +QUEUED; the real
		// handler waits until EXEC delivers the results.
		db.multi = append(db.multi, p)
		db.cmds = append(db.cmds, pending{cmd: cmd, shape: redis.ShapeExpect, expect: "QUEUED"})
	} else {
		db.cmds = append(db.cmds, p)
	}
	return db
}

func (db *DB) fail(err error) *DB {
	if db.err == nil {
		db.err = err
	}
	return db
}

// StrDecode decodes bulk payloads of the next Do as UTF-8 strings with
// surrogate escapes for invalid bytes.
func (db *DB) StrDecode() *DB {
	db.mode = redis.ModeStr
	return db
}

// AutoDecode decodes bulk payloads of the next Do as UTF-8 and parses JSON
// documents and numbers. Undecodable payloads stay bytes.
func (db *DB) AutoDecode() *DB {
	db.mode = redis.ModeAuto
	return db
}

// FullDecode is an alias of AutoDecode.
func (db *DB) FullDecode() *DB {
	return db.AutoDecode()
}

// PreventPooling makes the next Do close the borrowed connection instead of
// returning it to the pool. The flag resets after that Do; a Do that leaves
// a transaction open keeps the connection bound and does not close it.
func (db *DB) PreventPooling() *DB {
	db.preventPooling = true
	return db
}

// Watch marks keys for optimistic locking of a following transaction. The
// connection stays bound to this DB until the transaction resolves.
func (db *DB) Watch(keys ...interface{}) *DB {
	if db.tx == txMulti {
		return db.fail(redis.ErrState.New("WATCH inside MULTI is not allowed"))
	}
	db.tx = txWatch
	return db.command(redis.Req("WATCH", keys...))
}

// Unwatch forgets all watched keys.
func (db *DB) Unwatch() *DB {
	if db.tx == txMulti {
		return db.fail(redis.ErrState.New("UNWATCH inside MULTI is not allowed"))
	}
	db.tx = txNone
	return db.command(redis.Req("UNWATCH"))
}

// Multi opens a transaction block; queued commands execute atomically on
// Exec.
func (db *DB) Multi() *DB {
	if db.tx == txMulti {
		return db.fail(redis.ErrState.New("MULTI calls can not be nested"))
	}
	db.command(redis.Req("MULTI"))
	db.tx = txMulti
	return db
}

// Exec runs the open transaction. Its result is false when a watched key
// changed, true when every queued command produced no output, and the list
// of outputs otherwise.
func (db *DB) Exec() *DB {
	if db.tx != txMulti {
		return db.fail(redis.ErrState.New("EXEC without MULTI"))
	}
	handlers := db.multi
	db.multi = nil
	db.tx = txNone
	db.cmds = append(db.cmds, pending{cmd: redis.Req("EXEC"), isExec: true, exec: handlers})
	return db
}

// Discard drops the open transaction and its queued commands.
func (db *DB) Discard() *DB {
	if db.tx != txMulti {
		return db.fail(redis.ErrState.New("DISCARD without MULTI"))
	}
	db.multi = nil
	db.tx = txNone
	db.cmds = append(db.cmds, pending{cmd: redis.Req("DISCARD"), shape: redis.ShapeExpect, expect: "OK"})
	return db
}

// Do flushes all queued commands over the bound connection and returns the
// shaped, decoded replies: the scalar reply when exactly one command
// produced output, otherwise the outputs in command order. Commands with a
// fixed acknowledgement (SET, PING, WATCH, ...) produce no entry.
//
// The decoding mode and the prevent-pooling flag reset after every
// successful Do. The connection is released to the pool unless a
// transaction is still in progress.
func (db *DB) Do(ctx context.Context) (interface{}, error) {
	if err := db.err; err != nil {
		db.abandon(false)
		return nil, err
	}
	if len(db.cmds) == 0 {
		return nil, nil
	}
	if db.conn == nil {
		conn, err := db.pool.Acquire(ctx)
		if err != nil {
			db.abandon(true)
			return nil, err
		}
		db.conn = conn
	}
	for _, p := range db.cmds {
		if err := db.conn.Enqueue(p.cmd); err != nil {
			// Nothing hit the wire: the connection is still good, only the
			// batch is lost. It may only be pooled when no server-side
			// transaction state is pending on it.
			db.conn.Reset()
			db.abandon(db.tx == txNone)
			return nil, err
		}
	}
	replies, err := db.conn.Flush(ctx)
	if err != nil {
		db.abandon(false)
		return nil, err
	}
	out, err := shapeReplies(db.cmds, replies)
	if err != nil {
		db.abandon(false)
		return nil, err
	}
	res := redis.DecodeReply(out, db.mode)

	txOpen := db.tx != txNone
	poolable := !db.preventPooling
	db.cmds = nil
	db.mode = redis.ModeNone
	db.preventPooling = false
	if !txOpen {
		db.pool.Release(db.conn, poolable)
		db.conn = nil
	}
	return res, nil
}

// Close releases the bound connection, if any, and resets the buffer. A
// connection abandoned mid-transaction is closed, not pooled.
func (db *DB) Close() {
	poolable := db.tx == txNone && !db.preventPooling && len(db.cmds) == 0 && db.err == nil
	db.abandon(poolable)
}

func (db *DB) abandon(poolable bool) {
	if db.conn != nil {
		db.pool.Release(db.conn, poolable)
		db.conn = nil
	}
	db.cmds = nil
	db.multi = nil
	db.mode = redis.ModeNone
	db.preventPooling = false
	db.tx = txNone
	db.err = nil
}

// shapeReplies runs the reply-shape table over a batch: fixed
// acknowledgements are consumed, transactions unpack, hash replies fold and
// single outputs collapse to a scalar.
func shapeReplies(cmds []pending, replies []interface{}) (interface{}, error) {
	out := make([]interface{}, 0, len(replies))
	for i, p := range cmds {
		v, consumed, err := shapeOne(p, replies[i], false)
		if err != nil {
			return nil, err
		}
		if !consumed {
			out = append(out, v)
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func shapeOne(p pending, r interface{}, inExec bool) (interface{}, bool, error) {
	if rerr := redis.ResultError(r); rerr != nil {
		// Server errors are data, except where they invalidate session
		// state: a failed WATCH/MULTI/EXEC or a rejected queued command
		// leaves the transaction half-built.
		name := strings.ToUpper(p.cmd.Name)
		sessionCritical := !inExec && (name == "WATCH" || name == "MULTI" || name == "EXEC" ||
			(p.shape == redis.ShapeExpect && p.expect == "QUEUED"))
		if sessionCritical {
			return nil, false, redis.ErrProtocol.Wrap(rerr, "%s failed inside a transaction", name).
				WithProperty(redis.EKCommand, name)
		}
		return rerr, false, nil
	}

	if p.isExec {
		arr, ok := r.([]interface{})
		if !ok {
			if r == nil {
				// A watched key changed and the transaction was discarded.
				return false, false, nil
			}
			return nil, false, redis.ErrProtocol.New("unexpected EXEC reply %v", r)
		}
		if len(arr) != len(p.exec) {
			return nil, false, redis.ErrProtocol.New(
				"EXEC returned %d results for %d commands", len(arr), len(p.exec))
		}
		inner := make([]interface{}, 0, len(arr))
		for i, q := range p.exec {
			v, consumed, err := shapeOne(q, arr[i], true)
			if err != nil {
				return nil, false, err
			}
			if !consumed {
				inner = append(inner, v)
			}
		}
		if len(inner) == 0 {
			return true, false, nil
		}
		return inner, false, nil
	}

	switch p.shape {
	case redis.ShapeExpect:
		if r == nil {
			// e.g. SET ... NX that did not set; counts as consumed.
			return nil, true, nil
		}
		if s, ok := r.(string); ok && s == p.expect {
			return nil, true, nil
		}
		return nil, false, redis.ErrProtocol.New("expected %s to %s, got %v", p.expect, p.cmd.Name, r).
			WithProperty(redis.EKCommand, p.cmd.Human())
	case redis.ShapeHash:
		arr, ok := r.([]interface{})
		if !ok {
			if r == nil {
				arr = nil
			} else {
				return nil, false, redis.ErrProtocol.New("expected hash reply to %s, got %v", p.cmd.Name, r)
			}
		}
		m, ok := redis.FoldHash(arr)
		if !ok {
			return nil, false, redis.ErrProtocol.New("unpaired hash reply to %s", p.cmd.Name)
		}
		return m, false, nil
	case redis.ShapeKeys:
		arr, ok := r.([]interface{})
		if !ok && r != nil {
			return nil, false, redis.ErrProtocol.New("expected key list reply to %s, got %v", p.cmd.Name, r)
		}
		keys, ok := redis.KeyList(arr)
		if !ok {
			return nil, false, redis.ErrProtocol.New("expected key list reply to %s, got %v", p.cmd.Name, r)
		}
		return keys, false, nil
	case redis.ShapeBool:
		n, ok := r.(int64)
		if !ok {
			return nil, false, redis.ErrProtocol.New("expected integer reply to %s, got %v", p.cmd.Name, r)
		}
		return n != 0, false, nil
	case redis.ShapeSeconds:
		n, ok := r.(int64)
		if !ok {
			return nil, false, redis.ErrProtocol.New("expected integer reply to %s, got %v", p.cmd.Name, r)
		}
		return float64(n) / 1000, false, nil
	}
	return r, false, nil
}
