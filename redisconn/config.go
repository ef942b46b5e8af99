package redisconn

import (
	"crypto/tls"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tronic/redio/redis"
)

// DefaultPort is the port used when the URL does not carry one.
const DefaultPort = "6379"

// Config describes how to reach and initialise one redis connection.
// The zero value of optional fields selects a default.
type Config struct {
	// Network is "tcp" or "unix".
	Network string
	// Addr is host:port for tcp, the socket path for unix.
	Addr string
	// UseTLS wraps the socket in TLS before the handshake.
	UseTLS bool
	// TLSConfig overrides the TLS client configuration. When nil, a default
	// configuration with ServerName set from the URL host is used.
	TLSConfig *tls.Config
	// ServerName is the SNI/certificate hostname for TLS.
	ServerName string
	// Password is sent with AUTH when non-empty.
	Password string
	// DB is selected with SELECT when non-zero.
	DB int
	// DialTimeout limits the connect (and TLS) phase. Default 5s.
	DialTimeout time.Duration
	// IOTimeout, when positive, bounds every socket read/write.
	IOTimeout time.Duration
	// Logger receives connection lifecycle events. Default logs through zap.
	Logger Logger
}

// ParseURL parses a connection URL into a Config.
//
// Recognised schemes: redis, rediss, redis+tls, redis+unix, redis+unix+tls.
// Grammar: scheme://[:password@]host[:port]/[database]?database=n. For unix
// variants the path component is the socket path (three leading slashes when
// no TLS hostname is given) and the host, if any, only names the TLS
// certificate. A URL without "//" is taken as host[:port].
func ParseURL(rawurl string) (Config, error) {
	if !strings.Contains(rawurl, "//") {
		rawurl = "redis://" + rawurl
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return Config{}, redis.ErrConfig.Wrap(err, "invalid redis URL")
	}
	if u.Fragment != "" {
		return Config{}, redis.ErrConfig.New("URL %q contains unsupported elements", rawurl)
	}

	cfg := Config{Network: "tcp"}
	var unix bool
	if u.Scheme != "" {
		seen := map[string]bool{}
		for _, part := range strings.Split(u.Scheme, "+") {
			switch part {
			case "redis":
			case "rediss":
				cfg.UseTLS = true
			case "tls":
				cfg.UseTLS = true
			case "unix":
				unix = true
			default:
				return Config{}, redis.ErrConfig.New("unsupported scheme %q", u.Scheme)
			}
			if seen[part] {
				return Config{}, redis.ErrConfig.New("unsupported scheme %q", u.Scheme)
			}
			seen[part] = true
		}
		if !seen["redis"] && !seen["rediss"] {
			return Config{}, redis.ErrConfig.New("unsupported scheme %q", u.Scheme)
		}
	}

	if u.User != nil {
		if u.User.Username() != "" {
			return Config{}, redis.ErrConfig.New("URL %q contains a username; only :password@ is supported", rawurl)
		}
		cfg.Password, _ = u.User.Password()
	}

	query := u.Query()
	queryDB := false
	if vals, ok := query["database"]; ok {
		n, err := strconv.Atoi(vals[0])
		if err != nil || n < 0 {
			return Config{}, redis.ErrConfig.New("invalid database %q", vals[0])
		}
		cfg.DB = n
		queryDB = true
	}

	if unix {
		if u.Port() != "" {
			return Config{}, redis.ErrConfig.New("unix socket URL should not contain a port")
		}
		if len(u.Path) <= 1 {
			return Config{}, redis.ErrConfig.New(
				"invalid redis socket path %q; try redis+unix://localhost/var/run/redis.sock", u.Path)
		}
		cfg.Network = "unix"
		cfg.Addr = u.Path
		cfg.ServerName = u.Hostname()
		return cfg, nil
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = DefaultPort
	}
	cfg.Addr = host + ":" + port
	cfg.ServerName = host

	if len(u.Path) > 1 {
		if queryDB {
			return Config{}, redis.ErrConfig.New("database given both in path and query of %q", rawurl)
		}
		n, err := strconv.Atoi(u.Path[1:])
		if err != nil || n < 0 {
			return Config{}, redis.ErrConfig.New("invalid database path %q", u.Path)
		}
		cfg.DB = n
	}
	return cfg, nil
}
