package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crashreporter/spool"
)

const testCrashID = "bp-924121d3-4de3-4b32-ab12-026fc0190928"

type result struct {
	stdout string
	stderr string
	code   int
}

func runApp(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp("test")
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"crashreporter"}, args...))
	return result{stdout: stdout.String(), stderr: stderr.String(), code: exitCode(err)}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return exitUsage
}

// collector is a fake crash collector recording gunzipped bodies.
type collector struct {
	*httptest.Server
	status atomic.Int32
	mu     sync.Mutex
	bodies []string
}

func newCollector(t *testing.T) *collector {
	t.Helper()
	c := &collector{}
	c.status.Store(http.StatusOK)
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		raw, _ := io.ReadAll(zr)
		c.mu.Lock()
		c.bodies = append(c.bodies, string(raw))
		c.mu.Unlock()

		status := int(c.status.Load())
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, "CrashID="+testCrashID+"\n")
		}
	}))
	t.Cleanup(c.Close)
	return c
}

func (c *collector) requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func (c *collector) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		return ""
	}
	return c.bodies[len(c.bodies)-1]
}

func decodeSubmit(t *testing.T, out string) SubmitResponse {
	t.Helper()
	var resp SubmitResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	return resp
}

func TestSubmitException_Success(t *testing.T) {
	c := newCollector(t)

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--message", "boom",
		"--frame", "org.example.Main.run(Main.java:12)",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}

	resp := decodeSubmit(t, res.stdout)
	if resp.CrashID != testCrashID {
		t.Errorf("expected crash id %s, got %s", testCrashID, resp.CrashID)
	}
	if !resp.Submitted {
		t.Error("expected submitted to be true")
	}
	if resp.CrashType != "uncaught exception" {
		t.Errorf("expected uncaught exception, got %s", resp.CrashType)
	}

	body := c.last()
	for _, want := range []string{
		"Test App",
		"java.lang.RuntimeException: boom",
		"\tat org.example.Main.run(Main.java:12)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q", want)
		}
	}
	if !strings.Contains(res.stderr, "crash report submitted") {
		t.Errorf("expected submit log line on stderr, got %q", res.stderr)
	}
}

func TestSubmitException_Caught(t *testing.T) {
	c := newCollector(t)

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.IllegalStateException",
		"--frame", "org.example.Main.run(Main.java:12)",
		"--caught",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}
	if resp := decodeSubmit(t, res.stdout); resp.CrashType != "caught exception" {
		t.Errorf("expected caught exception, got %s", resp.CrashType)
	}
	if !strings.Contains(c.last(), "[INFO] java.lang.IllegalStateException") {
		t.Error("expected [INFO] prefixed stack trace")
	}
}

func TestSubmitException_MissingClass(t *testing.T) {
	res := runApp(t, "submit", "exception", "--app-name", "Test App")
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
}

func TestSubmitException_InvalidFrame(t *testing.T) {
	c := newCollector(t)

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--frame", "not a frame",
		"--app-name", "Test App",
		"--server-url", c.URL,
	)
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
	if c.requests() != 0 {
		t.Errorf("expected no request, got %d", c.requests())
	}
}

func TestSubmit_MissingAppName(t *testing.T) {
	res := runApp(t, "submit", "exception", "--class", "java.lang.RuntimeException")
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
}

func TestSubmit_InvalidFormat(t *testing.T) {
	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--app-name", "Test App",
		"--format", "xml",
	)
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
}

func TestSubmitNative_WithMinidumpAndExtras(t *testing.T) {
	c := newCollector(t)
	dump := filepath.Join(t.TempDir(), "crash.dmp")
	if err := os.WriteFile(dump, []byte("MDMP"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := runApp(t, "submit", "native",
		"--minidump", dump,
		"--extras", filepath.Join("..", "..", "extras", "testdata", "extras.json"),
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}
	if resp := decodeSubmit(t, res.stdout); resp.CrashType != "fatal native crash" {
		t.Errorf("expected fatal native crash, got %s", resp.CrashType)
	}

	body := c.last()
	for _, want := range []string{"name=upload_file_minidump", "filename=crash.dmp", "MDMP", "InstallTime"} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q", want)
		}
	}
}

func TestSubmitNative_NonFatal(t *testing.T) {
	c := newCollector(t)

	res := runApp(t, "submit", "native",
		"--fatal=false",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}
	if resp := decodeSubmit(t, res.stdout); resp.CrashType != "non-fatal native crash" {
		t.Errorf("expected non-fatal native crash, got %s", resp.CrashType)
	}
	if strings.Contains(c.last(), "upload_file_minidump") {
		t.Error("expected no minidump part")
	}
}

func TestSubmit_Rejected(t *testing.T) {
	c := newCollector(t)
	c.status.Store(http.StatusNotFound)

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--format", "json",
	)
	if res.code != exitNoCrashID {
		t.Fatalf("expected exit %d, got %d", exitNoCrashID, res.code)
	}
	resp := decodeSubmit(t, res.stdout)
	if resp.Submitted || resp.CrashID != "" {
		t.Errorf("expected no crash id, got %+v", resp)
	}
	if resp.SpoolID != "" {
		t.Errorf("expected no spool id without --spool-on-failure, got %s", resp.SpoolID)
	}
}

func TestSubmit_ConfigFile(t *testing.T) {
	c := newCollector(t)
	path := filepath.Join(t.TempDir(), "crashreporter.yaml")
	yaml := `app:
  name: Config App
  id: "{1234}"
  server_url: ` + c.URL + `
  release_channel: beta
device:
  manufacturer: Acme
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--config", path,
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}
	body := c.last()
	for _, want := range []string{"Config App", "{1234}", "beta", "Acme"} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q", want)
		}
	}

	// Flags override the file.
	res = runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--config", path,
		"--app-name", "Flag App",
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}
	if body := c.last(); !strings.Contains(body, "Flag App") || strings.Contains(body, "Config App") {
		t.Error("expected --app-name to override app.name")
	}
}

func TestSubmit_ConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashreporter.yaml")
	if err := os.WriteFile(path, []byte("app:\n  nmae: typo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--config", path,
	)
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
}

func TestSubmit_NotifyRequiresType(t *testing.T) {
	c := newCollector(t)
	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--notify",
	)
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
	if c.requests() != 0 {
		t.Errorf("expected no request, got %d", c.requests())
	}
}

func TestSubmit_NotifyWebhook(t *testing.T) {
	c := newCollector(t)
	var events atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev map[string]any
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil && ev["crash_id"] == testCrashID {
			events.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--notify",
		"--notify-type", "webhook",
		"--notify-url", hook.URL,
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}
	if got := events.Load(); got != 1 {
		t.Errorf("expected 1 notification, got %d", got)
	}
}

func TestSpool_SubmitResubmitFlow(t *testing.T) {
	c := newCollector(t)
	c.status.Store(http.StatusInternalServerError)
	dir := t.TempDir()

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--spool-on-failure",
		"--spool-path", dir,
		"--format", "json",
	)
	if res.code != exitNoCrashID {
		t.Fatalf("expected exit %d, got %d (stderr: %s)", exitNoCrashID, res.code, res.stderr)
	}
	spoolID := decodeSubmit(t, res.stdout).SpoolID
	if spoolID == "" {
		t.Fatal("expected spool id")
	}

	res = runApp(t, "spool", "list", "--spool-path", dir, "--format", "json")
	if res.code != exitOK {
		t.Fatalf("list: exit %d (stderr: %s)", res.code, res.stderr)
	}
	var entries []spool.Entry
	if err := json.Unmarshal([]byte(res.stdout), &entries); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != spoolID {
		t.Fatalf("expected one entry %s, got %+v", spoolID, entries)
	}
	if entries[0].ProductName != "Test App" {
		t.Errorf("expected product Test App, got %s", entries[0].ProductName)
	}

	// Still failing: the record stays.
	res = runApp(t, "spool", "resubmit", "--server-url", c.URL, "--spool-path", dir, "--format", "json", spoolID)
	if res.code != exitNoCrashID {
		t.Fatalf("expected exit %d, got %d", exitNoCrashID, res.code)
	}

	c.status.Store(http.StatusOK)
	res = runApp(t, "spool", "resubmit", "--server-url", c.URL, "--spool-path", dir, "--format", "json", spoolID)
	if res.code != exitOK {
		t.Fatalf("resubmit: exit %d (stderr: %s)", res.code, res.stderr)
	}
	var resp ResubmitResponse
	if err := json.Unmarshal([]byte(res.stdout), &resp); err != nil {
		t.Fatalf("unmarshal resubmit: %v", err)
	}
	if resp.CrashID != testCrashID || !resp.Submitted {
		t.Errorf("unexpected resubmit response %+v", resp)
	}
	if !strings.Contains(c.last(), "Test App") {
		t.Error("expected spooled fields on the wire")
	}

	res = runApp(t, "spool", "list", "--spool-path", dir, "--format", "json")
	entries = nil
	if err := json.Unmarshal([]byte(res.stdout), &entries); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty spool after resubmit, got %d", len(entries))
	}
}

func TestSpool_Drop(t *testing.T) {
	c := newCollector(t)
	c.status.Store(http.StatusServiceUnavailable)
	dir := t.TempDir()

	res := runApp(t, "submit", "native",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--spool-on-failure",
		"--spool-path", dir,
		"--format", "json",
	)
	spoolID := decodeSubmit(t, res.stdout).SpoolID
	if spoolID == "" {
		t.Fatal("expected spool id")
	}

	if res := runApp(t, "spool", "drop", "--spool-path", dir, spoolID); res.code != exitOK {
		t.Fatalf("drop: exit %d (stderr: %s)", res.code, res.stderr)
	}
	if res := runApp(t, "spool", "drop", "--spool-path", dir, spoolID); res.code != exitUsage {
		t.Errorf("second drop: expected exit %d, got %d", exitUsage, res.code)
	}
}

func TestSpool_RequiresID(t *testing.T) {
	res := runApp(t, "spool", "drop", "--spool-path", t.TempDir())
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
}

func TestSpool_UnknownBackend(t *testing.T) {
	res := runApp(t, "spool", "list", "--spool-backend", "ftp")
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
}

func TestSubmit_DebugLogsMetrics(t *testing.T) {
	c := newCollector(t)

	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--app-name", "Test App",
		"--server-url", c.URL,
		"--log-level", "debug",
		"--format", "json",
	)
	if res.code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", res.code, res.stderr)
	}
	for _, want := range []string{"submission metrics", `"submit_succeeded":1`} {
		if !strings.Contains(res.stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, res.stderr)
		}
	}
}

func TestSubmit_InvalidLogLevel(t *testing.T) {
	res := runApp(t, "submit", "exception",
		"--class", "java.lang.RuntimeException",
		"--app-name", "Test App",
		"--log-level", "loud",
	)
	if res.code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, res.code)
	}
}
