/*
Package redisconn implements a single pipelined connection to a redis server.

A Conn buffers enqueued commands, flushes them in one write and reads the
matching replies in order. It tracks a single clean bit deciding whether the
connection may return to a pool; any IO or protocol failure, cancellation
mid-batch or entry into subscription mode clears it for good. There is no
attempt to re-synchronise a broken pipelined stream.

Dial parses nothing: pair it with ParseURL, which turns a redis:// URL into
a Config covering TCP, unix sockets and TLS, plus AUTH and SELECT.
*/
package redisconn
