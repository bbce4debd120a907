package tracker

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// stream is a minimal server-sent-events reader. Events are delivered
// on Events; the channel closes when the stream ends or errors. No
// reconnect is attempted here: the tracker's policy on stream failure
// is a permanent switch to polling, never a retry.
type stream struct {
	resp   *http.Response
	events chan []byte
	cancel context.CancelFunc
}

// openStream connects to the SSE endpoint and starts the read loop.
func openStream(ctx context.Context, hc *http.Client, url string) (*stream, error) {
	sctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(sctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client carries a request timeout that would cut a
	// long-lived stream short; keep its transport but not the deadline.
	sc := *hc
	sc.Timeout = 0
	resp, err := sc.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	s := &stream{
		resp:   resp,
		events: make(chan []byte),
		cancel: cancel,
	}
	go s.read(sctx)
	return s, nil
}

// read parses the wire format: "data:" lines accumulate until a blank
// line terminates the event. Comments and other fields are skipped.
func (s *stream) read(ctx context.Context) {
	defer close(s.events)
	defer s.resp.Body.Close()

	scanner := bufio.NewScanner(s.resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				payload := []byte(strings.Join(data, "\n"))
				data = data[:0]
				select {
				case s.events <- payload:
				case <-ctx.Done():
					return
				}
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:, id:, retry:, and comment lines are irrelevant
			// to this feed.
		}
	}
}

// close tears the connection down. Safe to call more than once.
func (s *stream) close() {
	s.cancel()
}
