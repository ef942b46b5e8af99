package redis_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"

	. "github.com/Tronic/redio/redis"
)

func readLines(lines ...string) (interface{}, error) {
	buf := []byte(strings.Join(lines, ""))
	return NewReader(bytes.NewReader(buf)).ReadReply()
}

func checkErr(t *testing.T, err error, typ *errorx.Type) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, errorx.IsOfType(err, typ), "got %v", err)
	}
}

func TestReadReply_IOAndFormatErrors(t *testing.T) {
	_, err := readLines("")
	checkErr(t, err, ErrIO)

	_, err = readLines("\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines("$\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines("/whatever\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines("+" + strings.Repeat("A", 1024*1024))
	checkErr(t, err, ErrProtocol)

	_, err = readLines(":\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines(":1.1\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines(":-\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines("$a\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines("$-2\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines(fmt.Sprintf("$%d\r\n", (512<<20)+1))
	checkErr(t, err, ErrProtocol)

	_, err = readLines("*-3\r\n")
	checkErr(t, err, ErrProtocol)

	_, err = readLines("$1\r\n")
	checkErr(t, err, ErrIO)

	_, err = readLines("$1\r\nabc")
	checkErr(t, err, ErrProtocol)

	_, err = readLines("*1\r\n")
	checkErr(t, err, ErrIO)

	_, err = readLines("*1\r\n$1\r\nabc")
	checkErr(t, err, ErrProtocol)
}

func TestReadReply_Correct(t *testing.T) {
	var res interface{}
	var err error

	res, err = readLines("+\r\n")
	assert.Nil(t, err)
	assert.Equal(t, "", res)

	res, err = readLines("+asdf\r\n")
	assert.Nil(t, err)
	assert.Equal(t, "asdf", res)

	// Error replies are values, not read errors.
	res, err = readLines("-ERR nope\r\n")
	assert.Nil(t, err)
	rerr := ResultError(res)
	if assert.NotNil(t, rerr) {
		assert.Contains(t, rerr.Error(), "ERR nope")
	}

	for _, i := range []int64{-1000, -1, 0, 1, 1000} {
		res, err = readLines(fmt.Sprintf(":%d\r\n", i))
		assert.Nil(t, err)
		assert.Equal(t, i, res)
	}

	res, err = readLines(":9223372036854775807\r\n")
	assert.Nil(t, err)
	assert.Equal(t, int64(9223372036854775807), res)

	res, err = readLines(":-9223372036854775808\r\n")
	assert.Nil(t, err)
	assert.Equal(t, int64(-9223372036854775808), res)

	res, err = readLines("$0\r\n", "\r\n")
	assert.Nil(t, err)
	assert.Equal(t, []byte(""), res)

	res, err = readLines("$4\r\n", "asdf\r\n")
	assert.Nil(t, err)
	assert.Equal(t, []byte("asdf"), res)

	big := strings.Repeat("a", 1024*1024)
	res, err = readLines(fmt.Sprintf("$%d\r\n", len(big)), big, "\r\n")
	assert.Nil(t, err)
	assert.Equal(t, []byte(big), res)

	res, err = readLines("$-1\r\n")
	assert.Nil(t, err)
	assert.Nil(t, res)

	res, err = readLines("*-1\r\n")
	assert.Nil(t, err)
	assert.Nil(t, res)

	res, err = readLines("*0\r\n")
	assert.Nil(t, err)
	assert.Equal(t, []interface{}{}, res)

	res, err = readLines("*2\r\n", "+OK\r\n", "*2\r\n", ":1\r\n", "$2\r\nhi\r\n")
	assert.Nil(t, err)
	assert.Equal(t, []interface{}{"OK", []interface{}{int64(1), []byte("hi")}}, res)
}

func TestReadReply_Segmented(t *testing.T) {
	// Partial frames must never desynchronise the parser, whatever the
	// segmentation. One byte at a time is the worst case.
	wire := ":42\r\n*2\r\n$3\r\nfoo\r\n$-1\r\n+OK\r\n"
	rd := NewReader(iotest.OneByteReader(bytes.NewReader([]byte(wire))))

	res, err := rd.ReadReply()
	assert.Nil(t, err)
	assert.Equal(t, int64(42), res)

	res, err = rd.ReadReply()
	assert.Nil(t, err)
	assert.Equal(t, []interface{}{[]byte("foo"), nil}, res)

	res, err = rd.ReadReply()
	assert.Nil(t, err)
	assert.Equal(t, "OK", res)

	_, err = rd.ReadReply()
	checkErr(t, err, ErrIO)
}

func TestReadReply_Pipelined(t *testing.T) {
	wire := "+OK\r\n:7\r\n$1\r\nx\r\n"
	rd := NewReader(bytes.NewReader([]byte(wire)))
	for _, want := range []interface{}{"OK", int64(7), []byte("x")} {
		res, err := rd.ReadReply()
		assert.Nil(t, err)
		assert.Equal(t, want, res)
	}
	assert.Equal(t, 0, rd.Buffered())
}
