// Command respcache fetches URLs through a configured response cache.
//
// Usage:
//
//	respcache get [-config file] [-stats] <url>...
//	respcache invalidate [-config file] <url>...
//	respcache stats [-config file]
//	respcache clear [-config file]
//
// Without -config an unbounded in-memory cache is used, which only helps
// when the same URL is given more than once.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jmgilman/go/respcache/cache"
	"github.com/jmgilman/go/respcache/config"
	"github.com/jmgilman/go/respcache/errors"
)

const usage = `respcache - URL response cache

Usage:
  respcache <command> [flags] [arguments]

Commands:
  get <url>...         fetch each URL through the cache and print its body
  invalidate <url>...  remove the stored entries for each URL
  stats                print the number of stored entries
  clear                remove every stored entry

Flags:
  -config <file>       YAML configuration file
  -stats               (get) print cache metrics to stderr when done
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	action := args[0]

	flags := flag.NewFlagSet(action, flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := flags.String("config", "", "")
	printStats := flags.Bool("stats", false, "")
	if err := flags.Parse(args[1:]); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return fail(stderr, err)
		}
	}

	c, err := config.Build(ctx, cfg, cfg.Logger(stderr))
	if err != nil {
		return fail(stderr, err)
	}

	switch action {
	case "get":
		if flags.NArg() == 0 {
			fmt.Fprintln(stderr, "get: at least one URL is required")
			return 2
		}
		code := get(ctx, c, flags.Args(), stdout, stderr)
		if *printStats {
			_ = printJSON(stderr, stderr, c.Metrics().Snapshot())
		}
		return code
	case "invalidate":
		for _, url := range flags.Args() {
			if err := c.Invalidate(ctx, url); err != nil {
				return fail(stderr, err)
			}
		}
		return 0
	case "stats":
		n, err := c.Len(ctx)
		if err != nil {
			return fail(stderr, err)
		}
		return printJSON(stdout, stderr, map[string]any{
			"available": c.Available(),
			"entries":   n,
			"medium":    cfg.Medium.Type,
		})
	case "clear":
		if err := c.Clear(ctx); err != nil {
			return fail(stderr, err)
		}
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", action, usage)
		return 2
	}
}

// get resolves every URL concurrently and prints the bodies in argument order.
func get(ctx context.Context, c *cache.ResponseCache, urls []string, stdout, stderr io.Writer) int {
	requests := make([]*cache.Request, len(urls))
	for i, url := range urls {
		requests[i] = c.GetURL(ctx, url)
	}

	code := 0
	for _, r := range requests {
		v, err := r.Wait(ctx)
		if err != nil {
			code = fail(stderr, err)
			continue
		}
		_, _ = stdout.Write(v.Bytes())
		if n := v.Len(); n == 0 || v.Bytes()[n-1] != '\n' {
			fmt.Fprintln(stdout)
		}
	}
	return code
}

func fail(stderr io.Writer, err error) int {
	resp := errors.ToJSON(err)
	if resp == nil {
		return 0
	}
	_ = printJSON(stderr, stderr, resp)
	return 1
}

func printJSON(w, stderr io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "failed to encode output: %v\n", err)
		return 1
	}
	return 0
}
