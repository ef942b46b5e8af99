// Command redio-cli runs a single redis command against a server URL and
// prints the decoded reply. Meant for poking at a server and at this
// library, not as a redis-cli replacement.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Tronic/redio/redispool"
)

var cli struct {
	URL     string        `help:"Redis server URL." short:"u" default:"redis://localhost/"`
	Decode  string        `help:"Reply decoding mode." enum:"none,str,auto" default:"str"`
	Timeout time.Duration `help:"Overall command deadline." default:"5s"`

	Command []string `arg:"" optional:"" help:"Command and arguments (default PING)."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("redio-cli"),
		kong.Description("Run one redis command against a server."))

	p, err := redispool.New(cli.URL, redispool.Opts{Size: 1})
	kctx.FatalIfErrorf(err)
	defer p.Close()

	db := p.DB()
	switch cli.Decode {
	case "str":
		db.StrDecode()
	case "auto":
		db.AutoDecode()
	}

	name := "PING"
	var args []interface{}
	if len(cli.Command) > 0 {
		name = cli.Command[0]
		for _, a := range cli.Command[1:] {
			args = append(args, a)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()
	res, err := db.Command(name, args...).Do(ctx)
	kctx.FatalIfErrorf(err)

	switch v := res.(type) {
	case nil:
		fmt.Println("(nil)")
	case []byte:
		fmt.Printf("%q\n", v)
	case string, int64, bool, float64:
		fmt.Println(v)
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Printf("%v\n", v)
			return
		}
		fmt.Println(string(out))
	}
}
