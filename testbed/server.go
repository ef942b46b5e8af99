package testbed

import (
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Tronic/redio/redis"
)

// Server is the in-process fake. All state lives under one mutex; the
// workloads here are tiny.
type Server struct {
	lst      net.Listener
	password string

	mu       sync.Mutex
	strs     map[string]string
	hashes   map[string]map[string]string
	ttl      map[string]int64
	versions map[string]uint64
	clients  map[*client]struct{}
	closed   bool
}

// Start listens on an ephemeral localhost port. password may be empty.
func Start(password string) (*Server, error) {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		lst:      lst,
		password: password,
		strs:     map[string]string{},
		hashes:   map[string]map[string]string{},
		ttl:      map[string]int64{},
		versions: map[string]uint64{},
		clients:  map[*client]struct{}{},
	}
	go s.accept()
	return s, nil
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return s.lst.Addr().String()
}

// URL is a plain redis:// URL pointing at the server.
func (s *Server) URL() string {
	if s.password != "" {
		return "redis://:" + s.password + "@" + s.Addr() + "/"
	}
	return "redis://" + s.Addr() + "/"
}

// Close stops accepting and drops every live connection.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	s.lst.Close()
	for _, c := range clients {
		c.c.Close()
	}
}

func (s *Server) accept() {
	for {
		nc, err := s.lst.Accept()
		if err != nil {
			return
		}
		c := &client{
			srv:   s,
			c:     nc,
			r:     redis.NewReader(nc),
			watch: map[string]uint64{},
			subs:  map[string]bool{},
			psubs: map[string]bool{},
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			nc.Close()
			return
		}
		s.clients[c] = struct{}{}
		s.mu.Unlock()
		go c.serve()
	}
}

func (s *Server) bump(key string) {
	s.versions[key]++
}

type client struct {
	srv *Server
	c   net.Conn
	r   *redis.Reader

	wmu sync.Mutex

	authed bool
	watch  map[string]uint64
	multi  [][]string // nil when no transaction is open
	subs   map[string]bool
	psubs  map[string]bool
}

// errReply renders as a "-..." error line.
type errReply string

// nilArray renders as "*-1" (discarded EXEC).
type nilArray struct{}

// noReply means the handler already wrote everything itself.
type noReply struct{}

func (c *client) serve() {
	defer func() {
		c.c.Close()
		c.srv.mu.Lock()
		delete(c.srv.clients, c)
		c.srv.mu.Unlock()
	}()
	for {
		frame, err := c.r.ReadReply()
		if err != nil {
			return
		}
		args, ok := toArgs(frame)
		if !ok || len(args) == 0 {
			c.write(errReply("ERR protocol error"))
			return
		}
		res := c.dispatch(args)
		if _, quiet := res.(noReply); quiet {
			continue
		}
		if !c.write(res) {
			return
		}
	}
}

func toArgs(frame interface{}) ([]string, bool) {
	arr, ok := frame.([]interface{})
	if !ok {
		return nil, false
	}
	args := make([]string, len(arr))
	for i, v := range arr {
		b, ok := v.([]byte)
		if !ok {
			return nil, false
		}
		args[i] = string(b)
	}
	return args, true
}

func (c *client) dispatch(args []string) interface{} {
	cmd := strings.ToUpper(args[0])
	args = args[1:]

	if c.srv.password != "" && !c.authed && cmd != "AUTH" {
		return errReply("NOAUTH Authentication required.")
	}

	switch cmd {
	case "AUTH":
		if len(args) == 1 && args[0] == c.srv.password {
			c.authed = true
			return "OK"
		}
		return errReply("WRONGPASS invalid username-password pair")
	case "BOOM":
		// Test hook: drop the connection mid-conversation, no reply.
		c.c.Close()
		return noReply{}
	case "SUBSCRIBE", "PSUBSCRIBE", "UNSUBSCRIBE", "PUNSUBSCRIBE":
		return c.subscription(cmd, args)
	}

	if c.multi != nil {
		switch cmd {
		case "MULTI":
			return errReply("ERR MULTI calls can not be nested")
		case "EXEC":
			return c.exec()
		case "DISCARD":
			c.multi = nil
			c.watch = map[string]uint64{}
			return "OK"
		case "WATCH":
			return errReply("ERR WATCH inside MULTI is not allowed")
		default:
			c.multi = append(c.multi, append([]string{cmd}, args...))
			return "QUEUED"
		}
	}

	switch cmd {
	case "MULTI":
		c.multi = [][]string{}
		return "OK"
	case "EXEC":
		return errReply("ERR EXEC without MULTI")
	case "DISCARD":
		return errReply("ERR DISCARD without MULTI")
	case "WATCH":
		c.srv.mu.Lock()
		for _, k := range args {
			c.watch[k] = c.srv.versions[k]
		}
		c.srv.mu.Unlock()
		return "OK"
	case "UNWATCH":
		c.watch = map[string]uint64{}
		return "OK"
	case "PUBLISH":
		if len(args) != 2 {
			return errReply("ERR wrong number of arguments for 'publish' command")
		}
		return c.srv.publish(args[0], args[1])
	}

	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.execCmd(cmd, args)
}

func (c *client) exec() interface{} {
	queued := c.multi
	c.multi = nil
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	for k, ver := range c.watch {
		if c.srv.versions[k] != ver {
			c.watch = map[string]uint64{}
			return nilArray{}
		}
	}
	c.watch = map[string]uint64{}
	res := make([]interface{}, len(queued))
	for i, q := range queued {
		res[i] = c.srv.execCmd(q[0], q[1:])
	}
	return res
}

// execCmd runs one data command. Callers hold the server mutex.
func (s *Server) execCmd(cmd string, args []string) interface{} {
	switch cmd {
	case "PING":
		if len(args) == 1 {
			return []byte(args[0])
		}
		return "PONG"
	case "ECHO":
		return []byte(args[0])
	case "SELECT":
		return "OK"
	case "FLUSHDB", "FLUSHALL":
		for k := range s.strs {
			s.bump(k)
		}
		for k := range s.hashes {
			s.bump(k)
		}
		s.strs = map[string]string{}
		s.hashes = map[string]map[string]string{}
		s.ttl = map[string]int64{}
		return "OK"
	case "GET":
		v, ok := s.strs[args[0]]
		if !ok {
			return nil
		}
		return []byte(v)
	case "SET":
		s.strs[args[0]] = args[1]
		s.bump(args[0])
		return "OK"
	case "DEL":
		n := int64(0)
		for _, k := range args {
			if _, ok := s.strs[k]; ok {
				delete(s.strs, k)
				s.bump(k)
				n++
			}
			if _, ok := s.hashes[k]; ok {
				delete(s.hashes, k)
				s.bump(k)
				n++
			}
		}
		return n
	case "EXISTS":
		n := int64(0)
		for _, k := range args {
			if _, ok := s.strs[k]; ok {
				n++
			} else if _, ok := s.hashes[k]; ok {
				n++
			}
		}
		return n
	case "INCR":
		v, err := strconv.ParseInt(s.strs[args[0]], 10, 64)
		if s.strs[args[0]] == "" {
			v, err = 0, nil
		}
		if err != nil {
			return errReply("ERR value is not an integer or out of range")
		}
		v++
		s.strs[args[0]] = strconv.FormatInt(v, 10)
		s.bump(args[0])
		return v
	case "STRLEN":
		return int64(len(s.strs[args[0]]))
	case "HSET":
		if len(args) < 3 || len(args)%2 != 1 {
			return errReply("ERR wrong number of arguments for 'hset' command")
		}
		h := s.hashes[args[0]]
		if h == nil {
			h = map[string]string{}
			s.hashes[args[0]] = h
		}
		added := int64(0)
		for i := 1; i < len(args); i += 2 {
			if _, ok := h[args[i]]; !ok {
				added++
			}
			h[args[i]] = args[i+1]
		}
		s.bump(args[0])
		return added
	case "HGET":
		v, ok := s.hashes[args[0]][args[1]]
		if !ok {
			return nil
		}
		return []byte(v)
	case "HDEL":
		h := s.hashes[args[0]]
		n := int64(0)
		for _, f := range args[1:] {
			if _, ok := h[f]; ok {
				delete(h, f)
				n++
			}
		}
		if n > 0 {
			s.bump(args[0])
		}
		return n
	case "HEXISTS":
		if _, ok := s.hashes[args[0]][args[1]]; ok {
			return int64(1)
		}
		return int64(0)
	case "HGETALL":
		h := s.hashes[args[0]]
		keys := make([]string, 0, len(h))
		for f := range h {
			keys = append(keys, f)
		}
		// deterministic order keeps tests simple
		sort.Strings(keys)
		res := make([]interface{}, 0, 2*len(h))
		for _, f := range keys {
			res = append(res, []byte(f), []byte(h[f]))
		}
		return res
	case "KEYS":
		pattern := "*"
		if len(args) > 0 {
			pattern = args[0]
		}
		var keys []string
		for k := range s.strs {
			keys = append(keys, k)
		}
		for k := range s.hashes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		res := []interface{}{}
		for _, k := range keys {
			if ok, _ := path.Match(pattern, k); ok {
				res = append(res, []byte(k))
			}
		}
		return res
	case "PEXPIRE":
		ms, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errReply("ERR value is not an integer or out of range")
		}
		if _, ok := s.strs[args[0]]; !ok {
			if _, ok := s.hashes[args[0]]; !ok {
				return int64(0)
			}
		}
		s.ttl[args[0]] = ms
		return int64(1)
	case "PTTL":
		if ms, ok := s.ttl[args[0]]; ok {
			return ms
		}
		return int64(-1)
	}
	return errReply("ERR unknown command '" + strings.ToLower(cmd) + "'")
}
