// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FormatEvent renders a single server-sent event. Non-string data is JSON encoded.
func FormatEvent(name string, data any) string {
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	case nil:
		payload = "{}"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		payload = string(b)
	}

	var sb strings.Builder
	if name != "" {
		fmt.Fprintf(&sb, "event: %s\n", name)
	}
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}
	sb.WriteString("\n")
	return sb.String()
}

// WriteEvent writes an event to an httptest handler and flushes it.
func WriteEvent(t *testing.T, w http.ResponseWriter, name string, data any) {
	t.Helper()
	if _, err := io.WriteString(w, FormatEvent(name, data)); err != nil {
		t.Errorf("failed to write event %s: %v", name, err)
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// EventPipe feeds server-sent events to a consumer one at a time.
//
// Reader is handed to the stream under test; Send blocks until the consumer reads the event.
type EventPipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func NewEventPipe() *EventPipe {
	r, w := io.Pipe()
	return &EventPipe{r: r, w: w}
}

// Reader returns the consumer side of the pipe.
func (p *EventPipe) Reader() io.ReadCloser { return p.r }

// Send writes one event. It returns an error once the consumer has closed the stream.
func (p *EventPipe) Send(name string, data any) error {
	_, err := io.WriteString(p.w, FormatEvent(name, data))
	return err
}

// Fail breaks the stream with err, as if the connection dropped.
func (p *EventPipe) Fail(err error) {
	p.w.CloseWithError(err)
}

// Close ends the stream cleanly.
func (p *EventPipe) Close() {
	p.w.Close()
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
