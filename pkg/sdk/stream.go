package talkdb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	chiTransport "github.com/kailas-cloud/talkdb/internal/transport/chi"
)

// ChatStream runs one agent turn over Server-Sent Events and yields answer
// tokens as they arrive. A server-side failure is yielded once as an error
// wrapping ErrGenerationFailure or the matching sentinel. Breaking out of the
// loop closes the connection, which stops generation on the server.
func (c *Client) ChatStream(ctx context.Context, req SearchRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var err error
		defer c.observe(opChatStream, &err)()

		httpReq, err := c.newRequest(ctx, http.MethodGet, "/chat/stream", streamQuery(req), nil)
		if err != nil {
			yield("", err)
			return
		}
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			err = fmt.Errorf("talkdb: chat stream: %w", err)
			yield("", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			err = decodeError(resp)
			yield("", err)
			return
		}

		for ev, serr := range readEvents(resp.Body) {
			if serr != nil {
				err = serr
				yield("", err)
				return
			}
			switch {
			case ev.name == "error":
				err = streamError(ev.data)
				yield("", err)
				return
			case ev.data == chiTransport.EndMarker:
				return
			}
			if !yield(ev.data, nil) {
				return
			}
		}
		err = errStreamEnded
		yield("", err)
	}
}

func streamQuery(req SearchRequest) url.Values {
	q := url.Values{}
	q.Set("query", req.Query)
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("session_id", req.SessionID)
	set("scope", req.Scope)
	set("db_name", req.DBName)
	set("sources", strings.Join(req.Sources, ","))
	if req.UseHybrid != nil {
		q.Set("use_hybrid", strconv.FormatBool(*req.UseHybrid))
	}
	if req.TopK > 0 {
		q.Set("top_k", strconv.Itoa(req.TopK))
	}
	return q
}

// streamError maps the message of an error event back to its sentinel.
func streamError(msg string) error {
	for _, sentinel := range codeErrors {
		if msg == sentinel.Error() || strings.HasPrefix(msg, sentinel.Error()+":") {
			return fmt.Errorf("talkdb: chat stream: %w", errors.Join(sentinel, errors.New(msg)))
		}
	}
	return fmt.Errorf("talkdb: chat stream: %s", msg)
}

type event struct {
	name string
	data string
}

// readEvents splits an SSE body into events. Data lines of one event are
// joined with newlines.
func readEvents(body io.Reader) iter.Seq2[event, error] {
	return func(yield func(event, error) bool) {
		sc := bufio.NewScanner(body)
		sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

		var (
			ev    event
			lines []string
		)
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				if len(lines) > 0 || ev.name != "" {
					ev.data = strings.Join(lines, "\n")
					if !yield(ev, nil) {
						return
					}
				}
				ev, lines = event{}, nil
				continue
			}
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				ev.name = value
			case "data":
				lines = append(lines, value)
			}
		}
		if err := sc.Err(); err != nil {
			yield(event{}, fmt.Errorf("talkdb: read stream: %w", err))
		}
	}
}
