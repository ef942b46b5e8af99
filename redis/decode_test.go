package redis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/Tronic/redio/redis"
)

func TestSurrogateEscape(t *testing.T) {
	// Plain UTF-8 passes through.
	assert.Equal(t, "héllo", SurrogateEscape([]byte("héllo")))
	assert.Equal(t, "", SurrogateEscape(nil))

	// Each malformed byte maps to U+DC00+byte, spliced in encoded form.
	assert.Equal(t, "\xed\xb3\xbf", SurrogateEscape([]byte{0xFF}))
	assert.Equal(t, "a\xed\xb2\x80b", SurrogateEscape([]byte{'a', 0x80, 'b'}))

	// Truncated multibyte sequences escape byte by byte.
	assert.Equal(t, "\xed\xb3\xa9\xed\xb2\xad", SurrogateEscape([]byte{0xE9, 0xAD}))
}

func TestSurrogateRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("ascii only"),
		[]byte("utf-8 héllo ☺"),
		{0xFF, 0x00, 0xFF},
		{0x80},
		{0xC3},
		{'x', 0xE9, 0xAD, 'y'},
		{0xED, 0xB2, 0x80}, // an encoded surrogate on the wire stays lossless too
	}
	for _, b := range cases {
		assert.Equal(t, b, SurrogateUnescape(SurrogateEscape(b)), "case %v", b)
	}
}

func TestAutoDecode(t *testing.T) {
	// Invalid UTF-8 stays bytes.
	assert.Equal(t, []byte{0x80}, AutoDecode([]byte{0x80}))
	assert.Equal(t, []byte{0xFF, 0x00}, AutoDecode([]byte{0xFF, 0x00}))

	// Numbers parse, integers to int64 and the rest to float64.
	assert.Equal(t, int64(10), AutoDecode([]byte("10")))
	assert.Equal(t, int64(-3), AutoDecode([]byte("-3")))
	assert.Equal(t, 1.23, AutoDecode([]byte("1.23")))
	assert.Equal(t, 1e3, AutoDecode([]byte("1e3")))

	// Not strict JSON numbers: stay strings.
	assert.Equal(t, "007", AutoDecode([]byte("007")))
	assert.Equal(t, "1.", AutoDecode([]byte("1.")))
	assert.Equal(t, "+1", AutoDecode([]byte("+1")))
	assert.Equal(t, "true", AutoDecode([]byte("true")))
	assert.Equal(t, "null", AutoDecode([]byte("null")))
	assert.Equal(t, `"quoted"`, AutoDecode([]byte(`"quoted"`)))

	// Containers parse when valid, else remain text.
	assert.Equal(t,
		map[string]interface{}{"foo": float64(123), "bar": []interface{}{float64(1), float64(2), float64(3)}},
		AutoDecode([]byte(`{"foo":123,"bar":[1,2,3]}`)))
	assert.Equal(t, []interface{}{float64(1)}, AutoDecode([]byte("[1]")))
	assert.Equal(t, "{oops", AutoDecode([]byte("{oops")))
	assert.Equal(t, "plain text", AutoDecode([]byte("plain text")))
	assert.Equal(t, "", AutoDecode([]byte{}))
}

func TestDecodeReply(t *testing.T) {
	tree := func() interface{} {
		return []interface{}{
			[]byte("text"),
			int64(5),
			"OK",
			nil,
			[]interface{}{[]byte("10")},
		}
	}

	assert.Equal(t, tree(), DecodeReply(tree(), ModeNone))

	assert.Equal(t, []interface{}{
		"text", int64(5), "OK", nil, []interface{}{"10"},
	}, DecodeReply(tree(), ModeStr))

	assert.Equal(t, []interface{}{
		"text", int64(5), "OK", nil, []interface{}{int64(10)},
	}, DecodeReply(tree(), ModeAuto))

	// Map values decode, keys do not.
	m := map[string]interface{}{"k\xed\xb2\x80": []byte("1.5")}
	assert.Equal(t, map[string]interface{}{"k\xed\xb2\x80": 1.5}, DecodeReply(m, ModeAuto))
}

func TestFoldHash(t *testing.T) {
	m, ok := FoldHash([]interface{}{
		[]byte("field1"), []byte{0xFF, 0x00, 0xFF},
		[]byte{0xFE}, []byte("v"),
	})
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{
		"field1":       []byte{0xFF, 0x00, 0xFF},
		"\xed\xb3\xbe": []byte("v"),
	}, m)

	_, ok = FoldHash([]interface{}{[]byte("odd")})
	assert.False(t, ok)

	_, ok = FoldHash([]interface{}{int64(1), []byte("v")})
	assert.False(t, ok)

	m, ok = FoldHash(nil)
	assert.True(t, ok)
	assert.Empty(t, m)
}

func TestKeyList(t *testing.T) {
	keys, ok := KeyList([]interface{}{[]byte("a"), []byte{0x80}})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "\xed\xb2\x80"}, keys)

	_, ok = KeyList([]interface{}{int64(1)})
	assert.False(t, ok)
}
