package redispool

import (
	"math"

	"github.com/Tronic/redio/redis"
)

// Thin per-command helpers over the single command path. Apart from the
// seconds-to-milliseconds scaling in Expire and ExpireAt, none of them do
// anything but name the redis command; argument coercion and reply shaping
// come from the tables in the redis package.

func (db *DB) Get(key interface{}) *DB { return db.command(redis.Req("GET", key)) }

func (db *DB) Set(key, value interface{}, more ...interface{}) *DB {
	return db.command(redis.Req("SET", append([]interface{}{key, value}, more...)...))
}

func (db *DB) SetNX(key, value interface{}) *DB { return db.command(redis.Req("SETNX", key, value)) }

func (db *DB) Append(key, value interface{}) *DB { return db.command(redis.Req("APPEND", key, value)) }

func (db *DB) StrLen(key interface{}) *DB { return db.command(redis.Req("STRLEN", key)) }

func (db *DB) Del(keys ...interface{}) *DB { return db.command(redis.Req("DEL", keys...)) }

func (db *DB) Exists(keys ...interface{}) *DB { return db.command(redis.Req("EXISTS", keys...)) }

func (db *DB) Keys(pattern interface{}) *DB { return db.command(redis.Req("KEYS", pattern)) }

func (db *DB) Incr(key interface{}) *DB { return db.command(redis.Req("INCR", key)) }

func (db *DB) IncrBy(key interface{}, n int64) *DB { return db.command(redis.Req("INCRBY", key, n)) }

func (db *DB) Decr(key interface{}) *DB { return db.command(redis.Req("DECR", key)) }

func (db *DB) Echo(value interface{}) *DB { return db.command(redis.Req("ECHO", value)) }

func (db *DB) Ping() *DB { return db.command(redis.Req("PING")) }

func (db *DB) FlushDB() *DB { return db.command(redis.Req("FLUSHDB")) }

// Expire sets the key expiration in seconds, with millisecond precision.
func (db *DB) Expire(key interface{}, seconds float64) *DB {
	return db.command(redis.Req("PEXPIRE", key, int64(math.Round(1000*seconds))))
}

// ExpireAt sets the key expiration deadline as a unix timestamp in seconds.
func (db *DB) ExpireAt(key interface{}, when float64) *DB {
	return db.command(redis.Req("PEXPIREAT", key, int64(math.Round(1000*when))))
}

// TTL reports the remaining time to live of the key in float seconds.
func (db *DB) TTL(key interface{}) *DB { return db.command(redis.Req("PTTL", key)) }

func (db *DB) Persist(key interface{}) *DB { return db.command(redis.Req("PERSIST", key)) }

// HSet sets hash fields. Map arguments flatten into field/value pairs.
func (db *DB) HSet(key interface{}, fieldvals ...interface{}) *DB {
	return db.command(redis.Req("HSET", append([]interface{}{key}, fieldvals...)...))
}

func (db *DB) HGet(key, field interface{}) *DB { return db.command(redis.Req("HGET", key, field)) }

func (db *DB) HMGet(key interface{}, fields ...interface{}) *DB {
	return db.command(redis.Req("HMGET", append([]interface{}{key}, fields...)...))
}

func (db *DB) HGetAll(key interface{}) *DB { return db.command(redis.Req("HGETALL", key)) }

func (db *DB) HDel(key interface{}, fields ...interface{}) *DB {
	return db.command(redis.Req("HDEL", append([]interface{}{key}, fields...)...))
}

func (db *DB) HExists(key, field interface{}) *DB {
	return db.command(redis.Req("HEXISTS", key, field))
}

func (db *DB) HKeys(key interface{}) *DB { return db.command(redis.Req("HKEYS", key)) }

func (db *DB) HVals(key interface{}) *DB { return db.command(redis.Req("HVALS", key)) }

func (db *DB) HLen(key interface{}) *DB { return db.command(redis.Req("HLEN", key)) }

func (db *DB) HIncrBy(key, field interface{}, n int64) *DB {
	return db.command(redis.Req("HINCRBY", key, field, n))
}

func (db *DB) LPush(key interface{}, values ...interface{}) *DB {
	return db.command(redis.Req("LPUSH", append([]interface{}{key}, values...)...))
}

func (db *DB) RPush(key interface{}, values ...interface{}) *DB {
	return db.command(redis.Req("RPUSH", append([]interface{}{key}, values...)...))
}

func (db *DB) LPop(key interface{}) *DB { return db.command(redis.Req("LPOP", key)) }

func (db *DB) RPop(key interface{}) *DB { return db.command(redis.Req("RPOP", key)) }

func (db *DB) LRange(key interface{}, start, stop int64) *DB {
	return db.command(redis.Req("LRANGE", key, start, stop))
}

func (db *DB) LLen(key interface{}) *DB { return db.command(redis.Req("LLEN", key)) }

func (db *DB) SAdd(key interface{}, members ...interface{}) *DB {
	return db.command(redis.Req("SADD", append([]interface{}{key}, members...)...))
}

func (db *DB) SRem(key interface{}, members ...interface{}) *DB {
	return db.command(redis.Req("SREM", append([]interface{}{key}, members...)...))
}

func (db *DB) SMembers(key interface{}) *DB { return db.command(redis.Req("SMEMBERS", key)) }

func (db *DB) SIsMember(key, member interface{}) *DB {
	return db.command(redis.Req("SISMEMBER", key, member))
}

func (db *DB) Publish(channel, message interface{}) *DB {
	return db.command(redis.Req("PUBLISH", channel, message))
}
