// Package spool keeps built crash reports that could not be submitted so
// they can be sent again later.
//
// Records are msgpack documents stored through a lode Store under
// <prefix>/pending/<id>.msgpack. Attachment content is copied into the
// record at save time, so a spooled report no longer depends on the
// minidump file still being on disk.
package spool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/crashreporter/iox"
	"github.com/pithecene-io/crashreporter/log"
	"github.com/pithecene-io/crashreporter/report"
	"github.com/pithecene-io/crashreporter/types"
)

const (
	pendingDir = "pending"
	recordExt  = ".msgpack"
)

// Record is the stored form of a report.
type Record struct {
	ID          string              `msgpack:"id"`
	CreatedAt   time.Time           `msgpack:"created_at"`
	Type        types.CrashType     `msgpack:"crash_type"`
	Fields      []report.Field      `msgpack:"fields"`
	Attachments []report.Attachment `msgpack:"attachments,omitempty"`
}

// Report converts the record back into a report.
func (r *Record) Report() *report.Report {
	return &report.Report{
		Type:        r.Type,
		Fields:      r.Fields,
		Attachments: r.Attachments,
	}
}

// Entry summarizes a spooled record.
type Entry struct {
	ID          string    `json:"id" yaml:"id"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	CrashType   string    `json:"crash_type" yaml:"crash_type"`
	ProductName string    `json:"product_name" yaml:"product_name"`
	Fields      int       `json:"fields" yaml:"fields"`
	Attachments int       `json:"attachments" yaml:"attachments"`
}

// Spool stores reports in a lode Store.
type Spool struct {
	store  lode.Store
	prefix string
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Spool.
type Option func(*Spool)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Spool) { s.logger = l }
}

// New creates a spool on the store produced by factory.
func New(factory lode.StoreFactory, prefix string, opts ...Option) (*Spool, error) {
	store, err := factory()
	if err != nil {
		return nil, wrapError("init", prefix, err)
	}
	s := &Spool{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		logger: log.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFS creates a spool rooted at a local directory.
func NewFS(root string, opts ...Option) (*Spool, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrapError("init", root, err)
	}
	return New(lode.NewFSFactory(root), "", opts...)
}

// NewMemory creates an in-memory spool.
func NewMemory(opts ...Option) (*Spool, error) {
	return New(lode.NewMemoryFactory(), "", opts...)
}

// Save stores rep and returns the new record id. Attachment files are read
// into the record; one that cannot be read is left out with a warning.
func (s *Spool) Save(ctx context.Context, rep *report.Report) (string, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Type:      rep.Type,
		Fields:    append([]report.Field(nil), rep.Fields...),
	}
	for _, a := range rep.Attachments {
		data, err := attachmentData(a)
		if err != nil {
			s.logger.Warn("attachment not spooled", map[string]any{
				"part":  a.Name,
				"path":  a.Path,
				"error": err.Error(),
			})
			continue
		}
		rec.Attachments = append(rec.Attachments, report.Attachment{
			Name:     a.Name,
			Filename: a.Filename,
			Data:     data,
		})
	}

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("spool: encode record: %w", err)
	}
	p := s.recordPath(rec.ID)
	if err := s.store.Put(ctx, p, bytes.NewReader(data)); err != nil {
		return "", wrapError("save", p, err)
	}
	s.logger.Debug("report spooled", map[string]any{"id": rec.ID, "crash_type": string(rec.Type)})
	return rec.ID, nil
}

func attachmentData(a report.Attachment) ([]byte, error) {
	if a.Data != nil {
		return a.Data, nil
	}
	if a.Path == "" {
		return nil, fmt.Errorf("attachment %s has no content", a.Name)
	}
	return os.ReadFile(a.Path)
}

// Load returns the record with the given id.
func (s *Spool) Load(ctx context.Context, id string) (*Record, error) {
	p, err := s.existingPath(ctx, "load", id)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, p)
}

func (s *Spool) read(ctx context.Context, p string) (*Record, error) {
	rc, err := s.store.Get(ctx, p)
	if err != nil {
		return nil, wrapError("load", p, err)
	}
	defer iox.DiscardClose(rc)

	var rec Record
	if err := msgpack.NewDecoder(rc).Decode(&rec); err != nil {
		return nil, fmt.Errorf("spool: decode %s: %w", p, err)
	}
	return &rec, nil
}

// List returns every spooled record, oldest first. Records that cannot be
// decoded are skipped with a warning.
func (s *Spool) List(ctx context.Context) ([]Entry, error) {
	dir := s.pendingPrefix()
	paths, err := s.store.List(ctx, dir)
	if err != nil {
		if kind := classify(err); kind == ErrNotFound {
			return []Entry{}, nil
		}
		return nil, wrapError("list", dir, err)
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		if !strings.HasSuffix(p, recordExt) {
			continue
		}
		rec, err := s.read(ctx, p)
		if err != nil {
			s.logger.Warn("spooled record unreadable", map[string]any{"path": p, "error": err.Error()})
			continue
		}
		name, _ := rec.Report().Get(report.KeyProductName)
		entries = append(entries, Entry{
			ID:          rec.ID,
			CreatedAt:   rec.CreatedAt,
			CrashType:   string(rec.Type),
			ProductName: name,
			Fields:      len(rec.Fields),
			Attachments: len(rec.Attachments),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Delete removes the record with the given id.
func (s *Spool) Delete(ctx context.Context, id string) error {
	p, err := s.existingPath(ctx, "delete", id)
	if err != nil {
		return err
	}
	return wrapError("delete", p, s.store.Delete(ctx, p))
}

// existingPath validates id and checks the record exists.
func (s *Spool) existingPath(ctx context.Context, op, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", &StorageError{Kind: ErrNotFound, Op: op, Path: id, Err: err}
	}
	p := s.recordPath(id)
	ok, err := s.store.Exists(ctx, p)
	if err != nil {
		return "", wrapError(op, p, err)
	}
	if !ok {
		return "", &StorageError{Kind: ErrNotFound, Op: op, Path: p, Err: fmt.Errorf("no record %s", id)}
	}
	return p, nil
}

func (s *Spool) pendingPrefix() string {
	return path.Join(s.prefix, pendingDir) + "/"
}

func (s *Spool) recordPath(id string) string {
	return path.Join(s.prefix, pendingDir, id+recordExt)
}
