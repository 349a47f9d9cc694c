package spool

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/crashreporter/report"
)

func testReport(t *testing.T) *report.Report {
	t.Helper()
	dump := filepath.Join(t.TempDir(), "crash.dmp")
	if err := os.WriteFile(dump, []byte("MDMP\x00\x01"), 0o600); err != nil {
		t.Fatal(err)
	}
	return &report.Report{
		Type: "fatal native crash",
		Fields: []report.Field{
			{Name: report.KeyProductName, Value: "Test App"},
			{Name: report.KeyCrashType, Value: "fatal native crash"},
			{Name: "ContentSandboxLevel", Value: "2"},
		},
		Attachments: []report.Attachment{
			{Name: report.MinidumpPart, Filename: "crash.dmp", Path: dump},
		},
	}
}

func newMemory(t *testing.T) *Spool {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newMemory(t)
	rep := testReport(t)

	id, err := s.Save(t.Context(), rep)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// The original file is no longer needed once spooled.
	if err := os.Remove(rep.Attachments[0].Path); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Load(t.Context(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.ID != id {
		t.Errorf("ID = %q, want %q", rec.ID, id)
	}
	got := rec.Report()
	if got.Type != rep.Type {
		t.Errorf("Type = %q, want %q", got.Type, rep.Type)
	}
	if len(got.Fields) != len(rep.Fields) {
		t.Fatalf("len(Fields) = %d, want %d", len(got.Fields), len(rep.Fields))
	}
	for i, f := range rep.Fields {
		if got.Fields[i] != f {
			t.Errorf("Fields[%d] = %+v, want %+v", i, got.Fields[i], f)
		}
	}
	a, ok := got.Attachment(report.MinidumpPart)
	if !ok {
		t.Fatal("minidump missing from record")
	}
	if !bytes.Equal(a.Data, []byte("MDMP\x00\x01")) {
		t.Errorf("minidump bytes = %q", a.Data)
	}
	if a.Filename != "crash.dmp" || a.Path != "" {
		t.Errorf("attachment = %+v", a)
	}
}

func TestSave_SkipsUnreadableAttachment(t *testing.T) {
	s := newMemory(t)
	rep := testReport(t)
	rep.Attachments[0].Path = filepath.Join(t.TempDir(), "gone.dmp")

	id, err := s.Save(t.Context(), rep)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := s.Load(t.Context(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rec.Attachments) != 0 {
		t.Errorf("expected no attachments, got %d", len(rec.Attachments))
	}
}

func TestList_OrderedByCreation(t *testing.T) {
	s := newMemory(t)
	base := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 3 {
		s.now = func() time.Time { return base.Add(time.Duration(2-i) * time.Minute) }
		id, err := s.Save(t.Context(), testReport(t))
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		ids = append(ids, id)
	}

	entries, err := s.List(t.Context())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Saved newest first, so listing reverses the save order.
	for i, e := range entries {
		if e.ID != ids[2-i] {
			t.Errorf("entries[%d].ID = %s, want %s", i, e.ID, ids[2-i])
		}
	}
	e := entries[0]
	if e.CrashType != "fatal native crash" || e.ProductName != "Test App" {
		t.Errorf("entry = %+v", e)
	}
	if e.Fields != 3 || e.Attachments != 1 {
		t.Errorf("entry counts = %d fields, %d attachments", e.Fields, e.Attachments)
	}
}

func TestList_Empty(t *testing.T) {
	entries, err := newMemory(t).List(t.Context())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty list, got %d", len(entries))
	}
}

func TestDelete(t *testing.T) {
	s := newMemory(t)
	id, err := s.Save(t.Context(), testReport(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete(t.Context(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(t.Context(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("load after delete: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(t.Context(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestLoad_InvalidID(t *testing.T) {
	s := newMemory(t)
	for _, id := range []string{"", "../etc/passwd", "not-a-uuid"} {
		if _, err := s.Load(t.Context(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestFS_RoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "spool")
	s, err := NewFS(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	id, err := s.Save(t.Context(), testReport(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "pending", id+".msgpack")); err != nil {
		t.Errorf("record file: %v", err)
	}
	rec, err := s.Load(t.Context(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, _ := rec.Report().Get("ContentSandboxLevel"); v != "2" {
		t.Errorf("ContentSandboxLevel = %q", v)
	}
}

// failingStore is a lode.Store that returns configurable errors.
type failingStore struct {
	putErr   error
	listErr  error
	existErr error
}

func (s *failingStore) Put(_ context.Context, _ string, _ io.Reader) error { return s.putErr }

func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, s.existErr
}

func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.listErr
}

func (s *failingStore) Delete(_ context.Context, _ string) error { return nil }

func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func newFailing(t *testing.T, store *failingStore) *Spool {
	t.Helper()
	s, err := New(func() (lode.Store, error) { return store, nil }, "crashes")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestSave_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", errors.New("operation error S3: PutObject, AccessDenied: Access Denied"), ErrAccessDenied},
		{"throttled", errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{"network", errors.New("dial tcp 127.0.0.1:9000: connection refused"), ErrNetwork},
		{"permission", os.ErrPermission, ErrPermissionDenied},
		{"other", errors.New("boom"), ErrStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFailing(t, &failingStore{putErr: tt.err})
			_, err := s.Save(t.Context(), testReport(t))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var storageErr *StorageError
			if !errors.As(err, &storageErr) || storageErr.Op != "save" {
				t.Errorf("expected save StorageError, got %#v", err)
			}
			if !errors.Is(err, tt.err) {
				t.Error("underlying error lost from chain")
			}
		})
	}
}

func TestList_ErrorPaths(t *testing.T) {
	s := newFailing(t, &failingStore{listErr: os.ErrNotExist})
	entries, err := s.List(t.Context())
	if err != nil || len(entries) != 0 {
		t.Errorf("missing prefix: got (%v, %v), want empty list", entries, err)
	}

	s = newFailing(t, &failingStore{listErr: errors.New("request timed out")})
	if _, err := s.List(t.Context()); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestNew_FactoryError(t *testing.T) {
	_, err := New(func() (lode.Store, error) { return nil, errors.New("InvalidAccessKeyId") }, "")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestRecordPath(t *testing.T) {
	s := newFailing(t, &failingStore{})
	if got := s.recordPath("abc"); got != "crashes/pending/abc.msgpack" {
		t.Errorf("recordPath = %q", got)
	}
	if got := s.pendingPrefix(); got != "crashes/pending/" {
		t.Errorf("pendingPrefix = %q", got)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/crashes", "bucket", "crashes"},
		{"s3://bucket/a/b/", "bucket", "a/b"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.in, b, p, tt.bucket, tt.prefix)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
	cfg.Bucket = "crashes"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
