package redis_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/Tronic/redio/redis"
)

func TestShapeOf(t *testing.T) {
	shape, expect := ShapeOf("set")
	assert.Equal(t, ShapeExpect, shape)
	assert.Equal(t, "OK", expect)

	shape, expect = ShapeOf("PING")
	assert.Equal(t, ShapeExpect, shape)
	assert.Equal(t, "PONG", expect)

	shape, _ = ShapeOf("HGETALL")
	assert.Equal(t, ShapeHash, shape)

	shape, _ = ShapeOf("keys")
	assert.Equal(t, ShapeKeys, shape)

	shape, _ = ShapeOf("HEXISTS")
	assert.Equal(t, ShapeBool, shape)

	shape, _ = ShapeOf("PTTL")
	assert.Equal(t, ShapeSeconds, shape)

	// Unknown commands produce output unchanged.
	shape, expect = ShapeOf("GET")
	assert.Equal(t, ShapeDefault, shape)
	assert.Equal(t, "", expect)
}

func TestFlattens(t *testing.T) {
	assert.True(t, Flattens("HSET"))
	assert.True(t, Flattens("mset"))
	assert.False(t, Flattens("GET"))
	assert.False(t, Flattens("XADD"))
}

func TestCommandHuman(t *testing.T) {
	assert.Equal(t, "GET key", Req("GET", "key").Human())
	assert.Equal(t, `SET k ""`, Req("SET", "k", "").Human())
	assert.Equal(t, "SET k [3 bytes]", Req("SET", "k", []byte{0xff, 0x00, 0xff}).Human())
	assert.Equal(t, "SET k [24 bytes]", Req("SET", "k", strings.Repeat("x", 24)).Human())

	long := make([]interface{}, 12)
	for i := range long {
		long[i] = i
	}
	h := Req("DEL", long...).Human()
	assert.Equal(t, "DEL 0 1 2 3 4 5 6 7 8 9 ... of 12 args", h)
}
