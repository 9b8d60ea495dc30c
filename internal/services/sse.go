package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/novelx/internal/shared"
)

// DefaultEventName applies when a server-sent event has no event field.
const DefaultEventName = "message"

// Event is a single server-sent event.
type Event struct {
	Name string
	Data string
	ID   string
}

// Decode unmarshals the event data as JSON into v.
func (e Event) Decode(v any) error {
	if strings.TrimSpace(e.Data) == "" {
		return fmt.Errorf("%w: empty %s event", shared.ErrStream, e.Name)
	}
	if err := json.Unmarshal([]byte(e.Data), v); err != nil {
		return fmt.Errorf("%w: failed to decode %s event: %v", shared.ErrStream, e.Name, err)
	}
	return nil
}

// Stream reads server-sent events from an open response.
//
// Next returns io.EOF once the server closes the stream. Close is idempotent and
// unblocks a pending Next.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	cancel context.CancelFunc
	once   sync.Once
}

// NewStream wraps body as an event stream.
func NewStream(body io.ReadCloser, cancel context.CancelFunc) *Stream {
	if cancel == nil {
		cancel = func() {}
	}
	return &Stream{body: body, reader: bufio.NewReader(body), cancel: cancel}
}

// Next blocks until the next complete event arrives.
//
// Lines starting with ":" are comments, multi-line data is joined with "\n", and a
// blank line dispatches the pending event.
func (s *Stream) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Event{}, fmt.Errorf("%w: %v", shared.ErrConnection, err)
		}
		if err != nil && line == "" {
			if hasData {
				return s.dispatch(ev, data), nil
			}
			return Event{}, io.EOF
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if hasData {
				return s.dispatch(ev, data), nil
			}
			ev = Event{}
			continue
		case strings.HasPrefix(line, ":"):
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			ev.ID = value
		}
	}
}

func (s *Stream) dispatch(ev Event, data []string) Event {
	if ev.Name == "" {
		ev.Name = DefaultEventName
	}
	ev.Data = strings.Join(data, "\n")
	return ev
}

// Close cancels the request and closes the body.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}

// OpenStream opens a GET event stream at path.
func (a *APIService) OpenStream(ctx context.Context, path string, query url.Values) (*Stream, error) {
	return a.openStream(ctx, http.MethodGet, path, query, nil)
}

// openStream issues the request on the stream client, which has no overall timeout.
//
// A non-2xx status is returned as [*APIError].
func (a *APIService) openStream(ctx context.Context, method, path string, query url.Values, body io.Reader) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := a.newRequest(ctx, method, a.URL(path, query), body)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := a.send(a.streamClient, req)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	return NewStream(resp.Body, cancel), nil
}

// ChunkStream reads a plain chunked text response.
type ChunkStream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	buf    []byte
	once   sync.Once
}

// NewChunkStream wraps body as a chunk stream.
func NewChunkStream(body io.ReadCloser, cancel context.CancelFunc) *ChunkStream {
	if cancel == nil {
		cancel = func() {}
	}
	return &ChunkStream{body: body, cancel: cancel, buf: make([]byte, 4096)}
}

// Next returns the next chunk of text, or io.EOF at the end of the body.
func (c *ChunkStream) Next() (string, error) {
	n, err := c.body.Read(c.buf)
	if n > 0 {
		return string(c.buf[:n]), nil
	}
	if err == nil {
		return "", nil
	}
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	return "", fmt.Errorf("%w: %v", shared.ErrConnection, err)
}

// Close cancels the request and closes the body.
func (c *ChunkStream) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		err = c.body.Close()
	})
	return err
}
