package redis

import (
	"github.com/joomcode/errorx"
)

// Errors is the root namespace of all errors produced by this library.
// Redis error replies are carried as *errorx.Error values of type ErrResult
// inside reply trees; everything else is returned through the error channel.
var Errors = errorx.NewNamespace("redio")

// TraitConnDirty marks errors after which the connection must not be reused:
// the reply stream can no longer be matched to the command stream.
var TraitConnDirty = errorx.RegisterTrait("connection_dirty")

// TraitHandshake marks connection errors raised by the AUTH/SELECT/TLS setup.
// They are configuration problems and there is no point in retrying the dial.
var TraitHandshake = errorx.RegisterTrait("handshake")

var (
	// ErrConfig - connection URL is malformed or the scheme is not recognised.
	ErrConfig = Errors.NewType("config")
	// ErrConnect - dial, TLS handshake, AUTH or SELECT failed.
	ErrConnect = Errors.NewType("connect")
	// ErrConnectSetup - the TLS/AUTH/SELECT phase of a connect failed.
	// Subtype of ErrConnect; carries TraitHandshake.
	ErrConnectSetup = ErrConnect.NewSubtype("setup", TraitHandshake)
	// ErrEncode - command argument could not be serialised. The connection
	// is unaffected: nothing has been written.
	ErrEncode = Errors.NewType("encode")
	// ErrProtocol - response framing is malformed or out of sync.
	ErrProtocol = Errors.NewType("protocol", TraitConnDirty)
	// ErrIO - read/write error or timeout on the socket.
	ErrIO = Errors.NewType("io", TraitConnDirty)
	// ErrResult - regular redis error reply ("-ERR ...").
	ErrResult = Errors.NewType("result").ApplyModifiers(errorx.TypeModifierOmitStackTrace)
	// ErrPoolClosed - acquire attempted after pool shutdown.
	ErrPoolClosed = Errors.NewType("pool_closed")
	// ErrState - api misuse, for example EXEC without MULTI or enqueueing
	// regular commands on a subscribed connection.
	ErrState = Errors.NewType("state")
)

var (
	// EKCommand - name of the command the error relates to.
	EKCommand = errorx.RegisterPrintableProperty("command")
	// EKAddress - address of the redis server.
	EKAddress = errorx.RegisterPrintableProperty("address")
	// EKDb - database index selected on the connection.
	EKDb = errorx.RegisterPrintableProperty("db")
)

// NewResult builds an error reply value from the text after '-'.
func NewResult(msg string) *errorx.Error {
	return ErrResult.New("%s", msg)
}

// AsError returns v as error if it is one.
func AsError(v interface{}) error {
	e, _ := v.(error)
	return e
}

// ResultError returns the redis error reply contained in v, or nil when v is
// a regular value or a hard error.
func ResultError(v interface{}) *errorx.Error {
	if e, ok := v.(*errorx.Error); ok && errorx.IsOfType(e, ErrResult) {
		return e
	}
	return nil
}

// Dirty reports whether err invalidates the connection it happened on.
func Dirty(err error) bool {
	return errorx.HasTrait(err, TraitConnDirty)
}
