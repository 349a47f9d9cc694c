package iox

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type spyCloser struct{ closed bool }

func (s *spyCloser) Close() error { s.closed = true; return errors.New("ignored") }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestDiscardErr(t *testing.T) {
	called := false
	DiscardErr(func() error {
		called = true
		return errors.New("ignored")
	})
	if !called {
		t.Fatal("fn was not called")
	}
}

type spyReadCloser struct {
	io.Reader
	closed bool
}

func (s *spyReadCloser) Close() error { s.closed = true; return nil }

func TestDrainClose(t *testing.T) {
	r := strings.NewReader("remaining body")
	s := &spyReadCloser{Reader: r}
	DrainClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
	if r.Len() != 0 {
		t.Errorf("expected body drained, %d bytes left", r.Len())
	}
}

func TestReadAtMost(t *testing.T) {
	got, err := ReadAtMost(strings.NewReader("CrashID=bp-1\nextra"), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "CrashID=bp-1" {
		t.Errorf("got %q", got)
	}
}
