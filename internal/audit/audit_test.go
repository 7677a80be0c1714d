package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func exportParams() Params {
	return Params{
		P("regNumber", "0123456789012345678"),
		P("dtype", "json"),
		P("api_code", "KEY"),
	}
}

func TestLogRequestBlockFormat(t *testing.T) {
	l, dir := newTestLogger(t)

	l.LogRequest(TenderGuru, "https://www.tenderguru.ru/api2.3/export", exportParams())

	want := `=== TENDERGURU API REQUEST ===
Timestamp: 2024-03-15 10:30:00
Endpoint: https://www.tenderguru.ru/api2.3/export
Params: {
  "regNumber": "0123456789012345678",
  "dtype": "json",
  "api_code": "KEY"
}
==================================================
`
	if got := readLog(t, dir, "api_calls.log"); got != want {
		t.Errorf("combined log mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
	if got := readLog(t, dir, "tenderguru.log"); got != want {
		t.Errorf("per-API log mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestLogRequestGoesToMatchingAPILogOnly(t *testing.T) {
	l, dir := newTestLogger(t)

	l.LogRequest(Damia, "https://api.damia.ru/rnp", Params{P("inn", "7707083893"), P("key", "KEY")})

	if got := readLog(t, dir, "damia.log"); !strings.Contains(got, "=== DAMIA API REQUEST ===") {
		t.Errorf("damia log missing request block:\n%s", got)
	}
	if got := readLog(t, dir, "tenderguru.log"); got != "" {
		t.Errorf("tenderguru log should be empty, got:\n%s", got)
	}
	if got := readLog(t, dir, "errors.log"); got != "" {
		t.Errorf("error log should be empty for requests, got:\n%s", got)
	}
}

func TestLogResponseBlockFormat(t *testing.T) {
	l, dir := newTestLogger(t)

	body := []byte(`{"Items":[{"Customer":"ООО Тест","Price":"100000"}]}`)
	l.LogResponse(TenderGuru, "https://www.tenderguru.ru/api2.3/export", exportParams(), 200, body)

	want := `=== TENDERGURU API RESPONSE ===
Timestamp: 2024-03-15 10:30:00
Endpoint: https://www.tenderguru.ru/api2.3/export
Params: {
  "regNumber": "0123456789012345678",
  "dtype": "json",
  "api_code": "KEY"
}
Status: 200
Response: {
  "Items": [
    {
      "Customer": "ООО Тест",
      "Price": "100000"
    }
  ]
}
==================================================
`
	if got := readLog(t, dir, "api_calls.log"); got != want {
		t.Errorf("combined log mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestNon200ResponseDuplicatedIntoErrorLog(t *testing.T) {
	l, dir := newTestLogger(t)

	l.LogResponse(TenderGuru, "https://www.tenderguru.ru/api2.3/export", exportParams(), 404, []byte(`{}`))

	for _, name := range []string{"api_calls.log", "tenderguru.log", "errors.log"} {
		got := readLog(t, dir, name)
		if !strings.Contains(got, "Status: 404") {
			t.Errorf("%s missing Status: 404 entry:\n%s", name, got)
		}
	}
}

func TestOKResponseNotInErrorLog(t *testing.T) {
	l, dir := newTestLogger(t)

	l.LogResponse(TenderGuru, "https://www.tenderguru.ru/api2.3/export", exportParams(), 200, []byte(`{}`))

	for _, name := range []string{"api_calls.log", "tenderguru.log"} {
		if got := readLog(t, dir, name); !strings.Contains(got, "Status: 200") {
			t.Errorf("%s missing Status: 200 entry:\n%s", name, got)
		}
	}
	if got := readLog(t, dir, "errors.log"); got != "" {
		t.Errorf("error log should be empty for 200 responses, got:\n%s", got)
	}
}

func TestTransportErrorRoutedToErrorLog(t *testing.T) {
	l, dir := newTestLogger(t)

	l.LogTransportError(Damia, "https://api.damia.ru/rnp", Params{P("inn", "123")}, os.ErrDeadlineExceeded)

	got := readLog(t, dir, "errors.log")
	if !strings.Contains(got, "Status: 0") {
		t.Errorf("transport error missing Status: 0:\n%s", got)
	}
	if !strings.Contains(got, `"error"`) {
		t.Errorf("transport error missing error body:\n%s", got)
	}
}

func TestParamsRoundTripPreservesOrder(t *testing.T) {
	in := Params{
		P("zebra", "1"),
		P("alpha", "2"),
		P("mode", "eauc"),
		P("count", float64(5)),
	}
	pretty := prettyParams(in)

	var out Params
	if err := json.Unmarshal([]byte(pretty), &out); err != nil {
		t.Fatalf("unmarshal pretty params: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("round trip lost entries: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Key != in[i].Key {
			t.Errorf("key order broken at %d: got %q, want %q", i, out[i].Key, in[i].Key)
		}
		if out[i].Value != in[i].Value {
			t.Errorf("value changed for %q: got %v, want %v", in[i].Key, out[i].Value, in[i].Value)
		}
	}
}

func TestParamsEncodeKeepsOrder(t *testing.T) {
	p := Params{
		P("regNumber", "123"),
		P("dtype", "json"),
		P("api_code", "a b"),
	}
	want := "regNumber=123&dtype=json&api_code=a+b"
	if got := p.Encode(); got != want {
		t.Errorf("Encode: got %q, want %q", got, want)
	}
}

func TestNonJSONBodyWrittenThrough(t *testing.T) {
	l, dir := newTestLogger(t)

	l.LogResponse(TenderGuru, "https://www.tenderguru.ru/api2.3/export", exportParams(), 502, []byte("Bad Gateway"))

	got := readLog(t, dir, "errors.log")
	if !strings.Contains(got, "Response: Bad Gateway") {
		t.Errorf("raw body not written through:\n%s", got)
	}
}
