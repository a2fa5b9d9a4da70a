// Command qf is an interactive observer for a quakefeed server. It prints
// every frame the shared replay broadcasts and turns single-letter
// shorthands into control commands, so one terminal can drive the feed
// while others watch.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/term"

	"github.com/seistech/quakefeed/internal/protocol"
)

const defaultURL = "ws://localhost:8765/ws"

// Frames carry full bulletins and event lists, which outgrow the default
// websocket read limit.
const readLimit = 16 << 20

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, errorTextStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("qf", flag.ContinueOnError)
	url := fs.String("url", defaultURL, "quakefeed WebSocket endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, *url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *url, err)
	}
	conn.SetReadLimit(readLimit)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		printBanner(*url)
	}

	// quitting distinguishes a user-initiated close from the server
	// dropping us, so the receive loop knows which farewell to print.
	var quitting atomic.Bool

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if quitting.Load() {
					return
				}
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					fmt.Println(hintStyle.Render("connection closed"))
				} else {
					fmt.Println(errorTextStyle.Render("connection lost: " + err.Error()))
				}
				return
			}
			printFrame(data)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
input:
	for scanner.Scan() {
		select {
		case <-done:
			break input
		default:
		}

		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}

		switch {
		case line == "q" || line == "quit" || line == "exit":
			break input
		case line == "n" || line == "next":
			send(ctx, conn, protocol.Command{Action: protocol.ActionNext})
		case line == "a" || line == "all":
			interval := 2.0
			send(ctx, conn, protocol.Command{Action: protocol.ActionPushAll, Interval: &interval})
		case line == "s" || line == "status":
			send(ctx, conn, protocol.Command{Action: protocol.ActionStatus})
		case line == "r" || line == "reset":
			send(ctx, conn, protocol.Command{Action: protocol.ActionReset})
		case line == "l" || line == "list":
			send(ctx, conn, protocol.Command{Action: protocol.ActionListEvents})
		case strings.HasPrefix(line, "e ") || line == "e":
			id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "e")))
			if err != nil {
				fmt.Println(hintStyle.Render("usage: e <event_id>"))
				continue
			}
			send(ctx, conn, protocol.Command{Action: protocol.ActionPushEvent, EventID: &id})
		default:
			// The server replies to anything unrecognized with its help
			// frame; forward the line instead of second-guessing it.
			send(ctx, conn, protocol.Command{Action: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	quitting.Store(true)
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	<-done
	return nil
}

func printBanner(url string) {
	fmt.Println(titleStyle.Render("quakefeed observer"))
	fmt.Println(hintStyle.Render("connected to " + url))
	fmt.Println()
	fmt.Println(hintStyle.Render("commands:"))
	fmt.Println(hintStyle.Render("  n / next     push the next message"))
	fmt.Println(hintStyle.Render("  a / all      push all remaining messages"))
	fmt.Println(hintStyle.Render("  s / status   show replay status"))
	fmt.Println(hintStyle.Render("  r / reset    rewind the replay"))
	fmt.Println(hintStyle.Render("  l / list     list catalog events"))
	fmt.Println(hintStyle.Render("  e <id>       push one event's messages"))
	fmt.Println(hintStyle.Render("  q / quit     leave"))
	fmt.Println()
}

func send(ctx context.Context, conn *websocket.Conn, cmd protocol.Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		fmt.Println(errorTextStyle.Render("encode command: " + err.Error()))
		return
	}

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		fmt.Println(errorTextStyle.Render("send failed: " + err.Error()))
	}
}

// printFrame pretty-prints one server frame under a colored kind header.
// Control frames are identified by their type field; bulletins by the
// single kind key wrapping the payload.
func printFrame(data []byte) {
	kind := frameKind(data)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(data)
	}

	header := kindHeaderStyle.Foreground(kindColor(kind)).Render("<< " + kind)
	fmt.Println()
	fmt.Println(header)
	fmt.Println(pretty.String())
}

func frameKind(data []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Type != "" {
		return probe.Type
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope) == 1 {
		for kind := range envelope {
			return kind
		}
	}
	return "frame"
}
