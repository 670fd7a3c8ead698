package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aussiebroadwan/tmq/internal/app"
)

var (
	configPath string
	logLevel   string
	verbose    bool
	subscribe  string
	publish    string
)

func main() {
	flag.StringVar(&configPath, "config", "./config.yaml", "config file path")
	flag.StringVar(&configPath, "c", "./config.yaml", "config file path (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flag.BoolVar(&verbose, "verbose", false, "shorthand for --log-level=debug")
	flag.BoolVar(&verbose, "v", false, "shorthand for --log-level=debug (shorthand)")
	flag.StringVar(&subscribe, "subscribe", "", "comma-separated token names to subscribe to (peer, bridge)")
	flag.StringVar(&publish, "publish", "", "comma-separated token names to publish (peer only)")

	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "broker":
		err = app.RunBroker(configPath, logLevel, verbose)
	case "peer":
		err = app.RunPeer(configPath, logLevel, verbose, app.PeerOptions{
			Subscribe: splitNonEmpty(subscribe),
			Publish:   splitNonEmpty(publish),
		})
	case "bridge":
		err = app.RunBridge(configPath, logLevel, verbose, app.BridgeOptions{
			Subscribe: splitNonEmpty(subscribe),
		})
	case "verify":
		err = app.RunVerify(configPath)
	case "version":
		app.RunVersion()
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `tmqd - token-addressed pub/sub broker and peer

Usage:
  tmqd [flags] <command>

Commands:
  broker    Run a broker node (control-plane registry + admin HTTP)
  peer      Run a peer node, subscribing/publishing token patterns
  bridge    Run a headless bridge, forwarding subscribed patterns to Redis
  verify    Verify configuration and broker reachability
  version   Print version information
  help      Show this help message

Flags:
  -c, --config string      Config file path (default "./config.yaml")
  --log-level string       Override log level (debug, info, warn, error)
  -v, --verbose            Shorthand for --log-level=debug
  --subscribe string       Comma-separated token names to subscribe to (peer, bridge)
  --publish string         Comma-separated token names to publish (peer only)

Examples:
  tmqd broker -c broker.yaml
  tmqd peer -c peer.yaml --subscribe weather.syd --publish alerts.syd
  tmqd bridge -c bridge.yaml --subscribe weather.syd
  tmqd verify -c peer.yaml
  tmqd version
`)
}
