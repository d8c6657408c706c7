// Command relay-loadgen drives a batch of fake WebSocket clients
// against a running relayd instance, to exercise admission, rebinding,
// and per-user backpressure under load.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type stats struct {
	connected  atomic.Int64
	controls   atomic.Int64
	welcomes   atomic.Int64
	errors     atomic.Int64
	sent       atomic.Int64
	dialErrors atomic.Int64
}

func main() {
	var (
		wsAddr      = flag.String("ws-addr", "ws://127.0.0.1:8080/ws", "base URL of the relay's /ws endpoint")
		users       = flag.Int("users", 10, "distinct simulated user_ids")
		perUser     = flag.Int("conns-per-user", 1, "connections opened for each user_id")
		messages    = flag.Int("messages", 5, "ws.message frames sent per connection")
		commandType = flag.String("command-type", "session_ping", "the type field on each sent frame")
		interval    = flag.Duration("interval", 100*time.Millisecond, "delay between messages on one connection")
		verbose     = flag.Bool("verbose", false, "log every frame received")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := &stats{}
	var wg sync.WaitGroup
	for u := 0; u < *users; u++ {
		userID := fmt.Sprintf("loadgen-user-%d", u)
		for c := 0; c < *perUser; c++ {
			wg.Add(1)
			go func(userID string, conn int) {
				defer wg.Done()
				runClient(ctx, logger, s, *wsAddr, userID, conn, *messages, *commandType, *interval)
			}(userID, c)
		}
	}

	wg.Wait()
	log.Printf(
		"connected=%d welcomes=%d controls=%d errors=%d sent=%d dial_errors=%d",
		s.connected.Load(), s.welcomes.Load(), s.controls.Load(), s.errors.Load(), s.sent.Load(), s.dialErrors.Load(),
	)
}

func runClient(ctx context.Context, logger *slog.Logger, s *stats, base, userID string, connIndex, messages int, commandType string, interval time.Duration) {
	u, err := url.Parse(base)
	if err != nil {
		log.Fatalf("relay-loadgen: parsing -ws-addr: %v", err)
	}
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		s.dialErrors.Add(1)
		logger.Warn("dial failed", "user_id", userID, "conn", connIndex, "error", err)
		return
	}
	defer conn.Close()
	s.connected.Add(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			switch frame["type"] {
			case "ws.control":
				s.controls.Add(1)
			case "welcome":
				s.welcomes.Add(1)
			case "error":
				s.errors.Add(1)
			}
			logger.Debug("frame received", "user_id", userID, "conn", connIndex, "frame", frame)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; i < messages; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := map[string]any{
				"type":       commandType,
				"request_id": fmt.Sprintf("%s-%d-%d", userID, connIndex, i),
				"data":       map[string]any{"seq": i},
			}
			raw, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
			s.sent.Add(1)
		}
	}

	select {
	case <-ctx.Done():
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
