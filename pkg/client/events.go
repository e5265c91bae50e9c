package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powerlab/wattlog/pkg/events"
)

// reconnectDelay is how long SubscribeEvents waits before redialing a
// dropped SSE stream.
const reconnectDelay = 2 * time.Second

// SubscribeEvents opens the daemon's SSE stream and delivers decoded
// events on the returned channel. The stream reconnects automatically
// until ctx is canceled, at which point the channel is closed.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)
		for {
			if err := c.streamEvents(ctx, out); err != nil {
				if ctx.Err() != nil {
					return
				}
				logrus.WithError(err).Debug("event stream interrupted, reconnecting")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()

	return out
}

func (c *Client) streamEvents(ctx context.Context, out chan<- events.Event) error {
	req, err := http.NewRequestWithContext(ctx, "GET", "http://unix/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close event stream: %v", err)
		}
	}()

	var (
		name    string
		scanner = bufio.NewScanner(resp.Body)
	)
	// Sample bursts can exceed the default 64KiB token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if name == "" {
				continue
			}
			ev := events.Event{Name: name, Data: json.RawMessage(data)}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- ev:
			}
		case line == "":
			name = ""
		}
	}

	return scanner.Err()
}
