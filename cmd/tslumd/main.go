// Command tslumd listens for, sends and replays TSL UMD tally packets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tslumd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	switch command {
	case "listen":
		opts, err := parseListenFlags(args, stderr)
		if err != nil {
			return err
		}
		return runListen(ctx, opts, stdout)
	case "send":
		opts, err := parseSendFlags(args, stderr)
		if err != nil {
			return err
		}
		return runSend(opts, stdout, nil, nil)
	case "replay":
		opts, err := parseReplayFlags(args, stderr)
		if err != nil {
			return err
		}
		return runReplay(ctx, opts, stdout)
	case "version":
		return runVersion(args, stdout, stderr, os.Getenv)
	case "help":
		printUsage()
		return nil
	}
	return fmt.Errorf("unknown command %q (try \"tslumd help\")", command)
}

func printUsage() {
	fmt.Println(`tslumd - TSL UMD tally packet tool

Usage: tslumd <command> [options]

Commands:
  listen     Receive packets on a UDP port and print them
  send       Build one packet and send it over UDP or a serial port
  replay     Decode packets from a pcap or pcapng capture
  version    Show build information
  help       Show this help message

Run "tslumd <command> -h" for the options of each command.

Examples:
  # Print everything arriving on port 1234
  tslumd listen -bind 0.0.0.0 -port 1234

  # Log packets to SQLite and serve debug pages on localhost
  tslumd listen -db tally.db -debug-listen 127.0.0.1:8080

  # Put camera 13 on air with full brightness
  tslumd send -ip 192.168.1.50 -addr 13 -tally 1 -display "CAM 13"

  # Decode a capture taken with tcpdump
  tslumd replay -pcap tally.pcap -port 1234`)
}
