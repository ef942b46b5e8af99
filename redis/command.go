package redis

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Command is a single redis command: a name and its arguments.
// Arguments are coerced into bulk strings by AppendCommand.
type Command struct {
	Name string
	Args []interface{}
}

// Req is a shorthand constructor for Command.
func Req(name string, args ...interface{}) Command {
	return Command{name, args}
}

// flattenArgs lists commands whose mapping arguments expand into alternating
// field/value bulk strings instead of a single JSON document.
var flattenArgs = map[string]bool{
	"HSET":   true,
	"HMSET":  true,
	"MSET":   true,
	"MSETNX": true,
}

// Flattens reports whether map arguments of the named command are expanded
// into alternating key/value arguments.
func Flattens(name string) bool {
	return flattenArgs[strings.ToUpper(name)]
}

// Shape describes how the reply of a command is presented to the caller.
type Shape int

const (
	// ShapeDefault - the reply is returned as is.
	ShapeDefault Shape = iota
	// ShapeExpect - a fixed simple-string reply is consumed and produces no
	// user-visible output.
	ShapeExpect
	// ShapeHash - alternating field/value bulk array folds into a map.
	ShapeHash
	// ShapeKeys - bulk array decodes into a list of key strings.
	ShapeKeys
	// ShapeBool - integer reply 0/1 becomes false/true.
	ShapeBool
	// ShapeSeconds - integer reply in milliseconds becomes float seconds.
	ShapeSeconds
)

var expectReply = map[string]string{
	"SET":      "OK",
	"MSET":     "OK",
	"LSET":     "OK",
	"RENAME":   "OK",
	"FLUSHALL": "OK",
	"FLUSHDB":  "OK",
	"WATCH":    "OK",
	"UNWATCH":  "OK",
	"MULTI":    "OK",
	"DISCARD":  "OK",
	"PING":     "PONG",
}

var shapeTable = map[string]Shape{
	"HGETALL":   ShapeHash,
	"KEYS":      ShapeKeys,
	"HKEYS":     ShapeKeys,
	"HEXISTS":   ShapeBool,
	"HSETNX":    ShapeBool,
	"SISMEMBER": ShapeBool,
	"SETNX":     ShapeBool,
	"PERSIST":   ShapeBool,
	"EXPIRE":    ShapeBool,
	"PEXPIRE":   ShapeBool,
	"EXPIREAT":  ShapeBool,
	"PEXPIREAT": ShapeBool,
	"PTTL":      ShapeSeconds,
}

// ShapeOf returns the reply shape for a command name and, for ShapeExpect,
// the exact simple string the server is expected to answer. Commands not in
// the table produce output unchanged.
func ShapeOf(name string) (Shape, string) {
	name = strings.ToUpper(name)
	if expect, ok := expectReply[name]; ok {
		return ShapeExpect, expect
	}
	return shapeTable[name], ""
}

// Human renders the command for logs. Long or binary arguments are shown as
// a byte count and argument lists truncate at ten entries.
func (cmd Command) Human() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(cmd.Name))
	n := len(cmd.Args)
	if n > 10 {
		n = 10
	}
	for _, a := range cmd.Args[:n] {
		raw, err := AppendArg(nil, a)
		if err != nil {
			fmt.Fprintf(&b, " <%T>", a)
			continue
		}
		switch {
		case len(raw) == 0:
			b.WriteString(` ""`)
		case len(raw) < 20 && utf8.Valid(raw):
			fmt.Fprintf(&b, " %s", raw)
		default:
			fmt.Fprintf(&b, " [%d bytes]", len(raw))
		}
	}
	if len(cmd.Args) > 10 {
		fmt.Fprintf(&b, " ... of %d args", len(cmd.Args))
	}
	return b.String()
}
