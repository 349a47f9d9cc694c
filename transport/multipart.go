package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"

	"github.com/google/uuid"

	"github.com/pithecene-io/crashreporter/iox"
	"github.com/pithecene-io/crashreporter/report"
)

// boundaryPrefix keeps generated boundaries recognizable in captured bodies.
const boundaryPrefix = "crashreporter-"

// skipFunc is told about attachments left out of the body.
type skipFunc func(a report.Attachment, err error)

// Encode writes rep to w as a multipart/form-data body and returns the
// matching Content-Type. Fields come first in report order, then
// attachments. An attachment whose file cannot be opened is left out.
func Encode(w io.Writer, rep *report.Report) (string, error) {
	return encode(w, rep, nil, nil)
}

func encode(w io.Writer, rep *report.Report, onSent func(report.Attachment), onSkip skipFunc) (string, error) {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundaryPrefix + uuid.NewString()); err != nil {
		return "", fmt.Errorf("transport: boundary: %w", err)
	}

	for _, f := range rep.Fields {
		if err := writeField(mw, f); err != nil {
			return "", err
		}
	}

	for _, a := range rep.Attachments {
		content, err := openAttachment(a)
		if err != nil {
			if onSkip != nil {
				onSkip(a, err)
			}
			continue
		}
		err = writeAttachment(mw, a, content)
		iox.DiscardClose(content)
		if err != nil {
			return "", err
		}
		if onSent != nil {
			onSent(a)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("transport: close multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}

func writeField(mw *multipart.Writer, f report.Field) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": f.Name}))
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("transport: field %s: %w", f.Name, err)
	}
	if _, err := io.WriteString(part, f.Value); err != nil {
		return fmt.Errorf("transport: field %s: %w", f.Name, err)
	}
	return nil
}

func writeAttachment(mw *multipart.Writer, a report.Attachment, content io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     a.Name,
		"filename": a.Filename,
	}))
	h.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("transport: attachment %s: %w", a.Name, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("transport: attachment %s: %w", a.Name, err)
	}
	return nil
}

// openAttachment returns the attachment content. The caller closes it.
func openAttachment(a report.Attachment) (io.ReadCloser, error) {
	if a.Data != nil {
		return io.NopCloser(bytes.NewReader(a.Data)), nil
	}
	if a.Path == "" {
		return nil, fmt.Errorf("attachment %s has no content", a.Name)
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
