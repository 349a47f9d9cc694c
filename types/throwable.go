package types

import (
	"fmt"
	"strings"
	"unicode"
)

// maxCauseDepth bounds cause chains so a cyclic chain cannot loop forever.
const maxCauseDepth = 32

// StackFrame is one frame of a captured exception stack.
type StackFrame struct {
	Class  string `json:"class" msgpack:"class"`
	Method string `json:"method" msgpack:"method"`
	File   string `json:"file,omitempty" msgpack:"file,omitempty"`
	// Line is the 1-based source line; zero or negative when unknown.
	Line int `json:"line,omitempty" msgpack:"line,omitempty"`
}

// String renders the frame as "Class.Method(File:Line)".
func (f StackFrame) String() string {
	var loc string
	switch {
	case f.File == "":
		loc = "Unknown Source"
	case f.Line > 0:
		loc = fmt.Sprintf("%s:%d", f.File, f.Line)
	default:
		loc = f.File
	}
	if f.Class == "" {
		return fmt.Sprintf("%s(%s)", f.Method, loc)
	}
	return fmt.Sprintf("%s.%s(%s)", f.Class, f.Method, loc)
}

// Throwable is a captured exception: its class, message, stack frames and
// optional cause.
type Throwable struct {
	Class   string       `json:"class" msgpack:"class"`
	Message string       `json:"message,omitempty" msgpack:"message,omitempty"`
	Frames  []StackFrame `json:"frames,omitempty" msgpack:"frames,omitempty"`
	Cause   *Throwable   `json:"cause,omitempty" msgpack:"cause,omitempty"`
}

// NewThrowable creates a throwable without frames.
func NewThrowable(class, message string) Throwable {
	return Throwable{Class: class, Message: message}
}

// String renders the header line "Class: Message".
func (t Throwable) String() string {
	if t.Message == "" {
		return t.Class
	}
	return t.Class + ": " + t.Message
}

// HasFrames reports whether any stack frame was captured for t itself.
func (t Throwable) HasFrames() bool {
	return len(t.Frames) > 0
}

// StackTrace renders t and its cause chain in the conventional text form:
//
//	java.lang.RuntimeException: boom
//		at org.example.Main.run(Main.java:12)
//	Caused by: java.io.IOException: closed
//		at org.example.Io.read(Io.java:40)
func (t Throwable) StackTrace() string {
	var b strings.Builder
	cur := &t
	for depth := 0; cur != nil && depth < maxCauseDepth; depth++ {
		if depth > 0 {
			b.WriteString("Caused by: ")
		}
		b.WriteString(cur.String())
		b.WriteByte('\n')
		for _, f := range cur.Frames {
			b.WriteString("\tat ")
			b.WriteString(f.String())
			b.WriteByte('\n')
		}
		cur = cur.Cause
	}
	return b.String()
}

// ParseStackFrame parses "Class.Method(File:Line)" as printed by
// StackFrame.String. Missing location parts are tolerated.
func ParseStackFrame(s string) (StackFrame, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "at "))
	if s == "" {
		return StackFrame{}, fmt.Errorf("empty stack frame")
	}

	var f StackFrame
	symbol := s
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return StackFrame{}, fmt.Errorf("invalid stack frame %q: unbalanced parenthesis", s)
		}
		symbol = s[:open]
		loc := s[open+1 : len(s)-1]
		if loc != "Unknown Source" {
			file, line, found := strings.Cut(loc, ":")
			f.File = file
			if found {
				if _, err := fmt.Sscanf(line, "%d", &f.Line); err != nil {
					return StackFrame{}, fmt.Errorf("invalid stack frame %q: bad line number", s)
				}
			}
		}
	}

	if dot := strings.LastIndexByte(symbol, '.'); dot >= 0 {
		f.Class = symbol[:dot]
		f.Method = symbol[dot+1:]
	} else {
		f.Method = symbol
	}
	if f.Method == "" {
		return StackFrame{}, fmt.Errorf("invalid stack frame %q: missing method", s)
	}
	if !validSymbol(symbol) {
		return StackFrame{}, fmt.Errorf("invalid stack frame %q: bad symbol", s)
	}
	return f, nil
}

// validSymbol reports whether s is a dotted identifier such as
// org.example.Main$Inner.<init> or lambda$run$0.
func validSymbol(s string) bool {
	for part := range strings.SplitSeq(s, ".") {
		if part == "" {
			return false
		}
		for _, r := range part {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_$<>", r) {
				return false
			}
		}
	}
	return true
}
