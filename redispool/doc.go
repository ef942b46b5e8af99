/*
Package redispool is the high level client: a URL-configured connection pool
handing out chainable command buffers.

	p, err := redispool.New("redis://localhost/", redispool.Opts{})
	db := p.DB()
	res, err := db.Set("k", "v").Get("k").StrDecode().Do(ctx)

Commands queue up on the DB until Do flushes them as one pipelined batch.
Replies come back in command order with fixed acknowledgements filtered out,
and a lone output collapses to a scalar. WATCH/MULTI/EXEC run through the
same buffer; a DB holding an open transaction keeps its connection until the
transaction resolves.
*/
package redispool
