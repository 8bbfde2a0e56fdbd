package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderFile names the development transport in responses.
const ProviderFile = "file"

// DevSender implements EmailSender for local development. Every message is
// written to dir as a JSON payload plus the rendered bodies instead of
// being sent.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender creates a file-based sender; dir is created on first use.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devRecord struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// SendEmail implements EmailSender.
func (d *DevSender) SendEmail(ctx context.Context, payload Payload) (*Response, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	now := d.now()
	id := uuid.NewString()
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(payload.Subject()), id[:8])

	data, err := json.MarshalIndent(devRecord{MessageID: id, Timestamp: now, Payload: payload}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal payload: %v", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: failed to write payload: %v", ErrFailedToSendEmail, err)
	}

	if html := payload.HTMLBody(); html != "" {
		if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(html), 0o644); err != nil {
			return nil, fmt.Errorf("%w: failed to write html body: %v", ErrFailedToSendEmail, err)
		}
	}
	if text := payload.TextBody(); text != "" {
		if err := os.WriteFile(filepath.Join(d.dir, base+".txt"), []byte(text), 0o644); err != nil {
			return nil, fmt.Errorf("%w: failed to write text body: %v", ErrFailedToSendEmail, err)
		}
	}

	return &Response{MessageID: id, Provider: ProviderFile}, nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename keeps a short, lowercase, filesystem safe form of s.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 60
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}

	return strings.ToLower(s)
}
