package redis

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
)

// AppendArg appends the bulk-string payload for a single argument value.
// Numbers format without locale dependence, floats in their shortest
// round-trip notation, booleans as "true"/"false", byte slices pass through
// unchanged and maps and sequences serialise to compact JSON. Unsupported
// values produce ErrEncode and leave buf untouched.
func AppendArg(buf []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return buf, nil
	case []byte:
		return append(buf, v...), nil
	case string:
		return append(buf, v...), nil
	case bool:
		if v {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case int:
		return strconv.AppendInt(buf, int64(v), 10), nil
	case int8:
		return strconv.AppendInt(buf, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(buf, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(buf, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(buf, v, 10), nil
	case uint:
		return strconv.AppendUint(buf, uint64(v), 10), nil
	case uint8:
		return strconv.AppendUint(buf, uint64(v), 10), nil
	case uint16:
		return strconv.AppendUint(buf, uint64(v), 10), nil
	case uint32:
		return strconv.AppendUint(buf, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(buf, v, 10), nil
	case float32:
		return strconv.AppendFloat(buf, float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.AppendFloat(buf, v, 'f', -1, 64), nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		raw, err := json.Marshal(v)
		if err != nil {
			return buf, ErrEncode.Wrap(err, "argument is not JSON serialisable")
		}
		return append(buf, raw...), nil
	}
	return buf, ErrEncode.New("command argument type %T not supported", v)
}

// AppendCommand appends the full RESP frame of one command: an array header
// followed by one bulk string per argument. Map arguments of commands in the
// flatten table expand into alternating field/value arguments with fields in
// sorted order. On error buf is returned unchanged.
func AppendCommand(buf []byte, cmd Command) ([]byte, error) {
	start := len(buf)
	if cmd.Name == "" {
		return buf, ErrEncode.New("empty command name")
	}
	args := cmd.Args
	if Flattens(cmd.Name) {
		var err error
		if args, err = flatten(args); err != nil {
			return buf, err
		}
	}
	buf = appendHead(buf, '*', int64(len(args)+1))
	buf = appendBulk(buf, []byte(cmd.Name))
	for _, a := range args {
		payload, err := AppendArg(nil, a)
		if err != nil {
			return buf[:start], err
		}
		buf = appendBulk(buf, payload)
	}
	return buf, nil
}

// flatten expands map arguments into alternating key/value pairs.
func flatten(args []interface{}) ([]interface{}, error) {
	expanded := make([]interface{}, 0, len(args))
	for _, a := range args {
		rv := reflect.ValueOf(a)
		if a == nil || rv.Kind() != reflect.Map {
			expanded = append(expanded, a)
			continue
		}
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]interface{}, rv.Len())
		for _, k := range rv.MapKeys() {
			kb, err := AppendArg(nil, k.Interface())
			if err != nil {
				return nil, err
			}
			keys = append(keys, string(kb))
			byKey[string(kb)] = rv.MapIndex(k).Interface()
		}
		sort.Strings(keys)
		for _, k := range keys {
			expanded = append(expanded, k, byKey[k])
		}
	}
	return expanded, nil
}

func appendHead(buf []byte, t byte, n int64) []byte {
	buf = append(buf, t)
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, '\r', '\n')
}

func appendBulk(buf, payload []byte) []byte {
	buf = appendHead(buf, '$', int64(len(payload)))
	buf = append(buf, payload...)
	return append(buf, '\r', '\n')
}
