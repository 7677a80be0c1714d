// Package audit records every outbound TenderGuru/Damia API call to disk.
// Each request and response is appended as a human-readable block to a
// combined log and a per-API log; non-200 responses are duplicated into an
// error log. The block format is fixed: existing log tooling parses it.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// API identifies the upstream service an audit record belongs to.
type API string

const (
	TenderGuru API = "TENDERGURU"
	Damia      API = "DAMIA"
)

const divider = "=================================================="

// sink is one append-only log file. Concurrent chat updates may log at the
// same time, so every append holds the sink mutex to keep blocks whole.
type sink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func openSink(path string) (*sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &sink{f: f, path: path}, nil
}

// append writes one block. Failures are reported via logrus and swallowed:
// a full disk must not abort the user's API call.
func (s *sink) append(block string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.WriteString(block); err != nil {
		logrus.Warnf("audit: failed to append to %s: %v", s.path, err)
	}
}

func (s *sink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Logger is the process-wide API call logger, initialized once at startup.
type Logger struct {
	combined *sink
	perAPI   map[API]*sink
	errors   *sink

	now func() time.Time
}

// New opens the four sinks under dir, creating the directory if needed.
func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("audit: failed to create log dir %s: %w", dir, err)
	}

	combined, err := openSink(filepath.Join(dir, "api_calls.log"))
	if err != nil {
		return nil, err
	}
	guru, err := openSink(filepath.Join(dir, "tenderguru.log"))
	if err != nil {
		return nil, err
	}
	damia, err := openSink(filepath.Join(dir, "damia.log"))
	if err != nil {
		return nil, err
	}
	errSink, err := openSink(filepath.Join(dir, "errors.log"))
	if err != nil {
		return nil, err
	}

	return &Logger{
		combined: combined,
		perAPI:   map[API]*sink{TenderGuru: guru, Damia: damia},
		errors:   errSink,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close flushes and closes all sinks.
func (l *Logger) Close() error {
	var firstErr error
	for _, s := range []*sink{l.combined, l.perAPI[TenderGuru], l.perAPI[Damia], l.errors} {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LogRequest records an outbound request before dispatch. It never fails the
// caller's control flow.
func (l *Logger) LogRequest(api API, endpoint string, params Params) {
	block := l.formatBlock(api, "REQUEST", endpoint, params, nil, nil)
	l.combined.append(block)
	if s, ok := l.perAPI[api]; ok {
		s.append(block)
	}
}

// LogResponse records a received response. Responses with status != 200 are
// additionally duplicated into the error log.
func (l *Logger) LogResponse(api API, endpoint string, params Params, status int, body []byte) {
	block := l.formatBlock(api, "RESPONSE", endpoint, params, &status, body)
	l.combined.append(block)
	if s, ok := l.perAPI[api]; ok {
		s.append(block)
	}
	if status != 200 {
		l.errors.append(block)
	}
}

// LogTransportError records a call that never produced an HTTP status
// (connection refused, timeout). Status 0 is never a real HTTP status, so
// tooling can tell these apart; the record lands in the error log.
func (l *Logger) LogTransportError(api API, endpoint string, params Params, callErr error) {
	body, err := json.Marshal(map[string]string{"error": callErr.Error()})
	if err != nil {
		body = []byte(`{"error": "unknown"}`)
	}
	l.LogResponse(api, endpoint, params, 0, body)
}

func (l *Logger) formatBlock(api API, direction, endpoint string, params Params, status *int, body []byte) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "=== %s API %s ===\n", api, direction)
	fmt.Fprintf(&b, "Timestamp: %s\n", l.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Endpoint: %s\n", endpoint)
	fmt.Fprintf(&b, "Params: %s\n", prettyParams(params))
	if status != nil {
		fmt.Fprintf(&b, "Status: %d\n", *status)
		fmt.Fprintf(&b, "Response: %s\n", prettyBody(body))
	}
	b.WriteString(divider)
	b.WriteByte('\n')
	return b.String()
}

func prettyParams(params Params) string {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		logrus.Warnf("audit: failed to marshal params: %v", err)
		return "{}"
	}
	return string(data)
}

// prettyBody re-indents the response body, preserving its key order. Bodies
// that are not valid JSON are written through as-is.
func prettyBody(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}
