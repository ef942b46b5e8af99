// Package testbed runs a small in-process redis lookalike for tests. It
// speaks enough RESP to exercise pipelining, transactions with WATCH and
// publish/subscribe, without needing a redis-server binary on the machine.
package testbed
