package testbed

import (
	"strconv"
)

// appendReply encodes a reply value into RESP.
func appendReply(buf []byte, v interface{}) []byte {
	switch v := v.(type) {
	case nil:
		return append(buf, "$-1\r\n"...)
	case nilArray:
		return append(buf, "*-1\r\n"...)
	case errReply:
		buf = append(buf, '-')
		buf = append(buf, v...)
		return append(buf, '\r', '\n')
	case string:
		buf = append(buf, '+')
		buf = append(buf, v...)
		return append(buf, '\r', '\n')
	case int64:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, v, 10)
		return append(buf, '\r', '\n')
	case int:
		return appendReply(buf, int64(v))
	case []byte:
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(v)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, v...)
		return append(buf, '\r', '\n')
	case []interface{}:
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(v)), 10)
		buf = append(buf, '\r', '\n')
		for _, e := range v {
			buf = appendReply(buf, e)
		}
		return buf
	}
	panic("testbed: cannot encode reply")
}

// write sends one reply frame, serialised against pushed pubsub messages.
func (c *client) write(v interface{}) bool {
	buf := appendReply(nil, v)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.c.Write(buf)
	return err == nil
}
