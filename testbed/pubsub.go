package testbed

import (
	"path"
	"strings"
)

// subscription handles the four (P)(UN)SUBSCRIBE commands. Each affected
// channel gets its own ack frame carrying the subscription count, the shape
// clients key their bookkeeping on.
func (c *client) subscription(cmd string, args []string) interface{} {
	kind := strings.ToLower(cmd)
	pattern := strings.HasPrefix(kind, "p")

	c.srv.mu.Lock()
	set := c.subs
	if pattern {
		set = c.psubs
	}
	var acks [][]interface{}
	switch kind {
	case "subscribe", "psubscribe":
		for _, ch := range args {
			set[ch] = true
			acks = append(acks, []interface{}{[]byte(kind), []byte(ch), int64(len(c.subs) + len(c.psubs))})
		}
	default:
		if len(args) == 0 {
			for ch := range set {
				args = append(args, ch)
			}
		}
		for _, ch := range args {
			delete(set, ch)
			acks = append(acks, []interface{}{[]byte(kind), []byte(ch), int64(len(c.subs) + len(c.psubs))})
		}
		if len(acks) == 0 {
			acks = append(acks, []interface{}{[]byte(kind), nil, int64(len(c.subs) + len(c.psubs))})
		}
	}
	c.srv.mu.Unlock()

	for _, ack := range acks {
		if !c.write(ack) {
			break
		}
	}
	return noReply{}
}

// publish delivers a message to every matching subscriber and returns the
// receiver count.
func (s *Server) publish(channel, payload string) interface{} {
	s.mu.Lock()
	type delivery struct {
		to    *client
		frame []interface{}
	}
	var out []delivery
	for c := range s.clients {
		if c.subs[channel] {
			out = append(out, delivery{c, []interface{}{
				[]byte("message"), []byte(channel), []byte(payload),
			}})
		}
		for p := range c.psubs {
			if ok, _ := path.Match(p, channel); ok {
				out = append(out, delivery{c, []interface{}{
					[]byte("pmessage"), []byte(p), []byte(channel), []byte(payload),
				}})
			}
		}
	}
	s.mu.Unlock()

	for _, d := range out {
		d.to.write(d.frame)
	}
	return int64(len(out))
}
