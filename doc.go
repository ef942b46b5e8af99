/*
Package redio is a redis client built around explicit pipelining.

Commands queue up on a DB buffer and fly out in one write when the batch is
awaited; replies come back in command order over the same connection. A
URL-configured pool (redis, rediss, redis+tls, redis+unix, redis+unix+tls)
hands out single-owner connections, transactions with WATCH/MULTI/EXEC run
on a pinned connection, and publish/subscribe gets a dedicated connection in
one-way receive mode.

Structure

- root package is empty

- RESP codec, decoding modes and the error taxonomy are in the redis subpackage

- a single pipelined connection is in the redisconn subpackage

- the pool and the high level DB buffer are in the redispool subpackage

- the subscription receiver is in the redispubsub subpackage

Reply values are plain Go types:

	redis        | go
	-------------|-------
	plain string | string
	bulk string  | []byte
	integer      | int64
	array        | []interface{}
	error        | error (*errorx.Error)

Redis error replies are data, not failures: they are embedded in batch
results so the rest of a pipelined batch stays readable. Transport and
framing errors, in contrast, break the connection and surface from the
awaiting call; broken connections never return to the pool.

Decoding modifiers rewrite bulk payloads after a successful batch: the str
mode produces UTF-8 strings with lossless surrogate escapes for invalid
bytes, the auto mode additionally parses JSON documents and numbers. The
modes reset after every await on a DB buffer and persist on a subscription
receiver.
*/
package redio
