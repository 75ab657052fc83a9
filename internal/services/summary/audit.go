package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"
)

const (
	// AuditFileName is the append-only decision log.
	AuditFileName = "log.txt"
	// StampLayout prefixes every audit line.
	StampLayout = "2006-01-02 15:04:05"
)

// Field is one key="value" pair of an audit record.
type Field struct {
	Key   string
	Value string
}

// F is shorthand for building a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: fmt.Sprint(value)}
}

// Auditor defines the interface for the audit log.
type Auditor interface {
	Append(category string, fields ...Field) error
}

// AuditLog appends single-line records to <dir>/log.txt.
type AuditLog struct {
	fs    afero.Fs
	dir   string
	owner *Owner
	clock clock.Clock
	mu    sync.Mutex
}

// NewAuditLog creates an audit log rooted at dir. owner may be nil.
func NewAuditLog(fs afero.Fs, dir string, owner *Owner, clk clock.Clock) *AuditLog {
	if clk == nil {
		clk = clock.New()
	}
	return &AuditLog{fs: fs, dir: dir, owner: owner, clock: clk}
}

// Path returns the audit file path.
func (a *AuditLog) Path() string {
	return filepath.Join(a.dir, AuditFileName)
}

// Append writes one record: [stamp] category="..." key="value"...
func (a *AuditLog) Append(category string, fields ...Field) error {
	if a.dir == "" {
		return fmt.Errorf("audit directory not configured")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ensureDir(a.fs, a.dir, a.owner); err != nil {
		return err
	}

	path := a.Path()
	existed, err := afero.Exists(a.fs, path)
	if err != nil {
		return fmt.Errorf("failed to stat audit log: %w", err)
	}

	f, err := a.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(a.clock.Now(), category, fields...)); err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	if !existed {
		return chown(a.fs, path, a.owner)
	}
	return nil
}

// FormatLine renders one newline-terminated audit record.
func FormatLine(stamp time.Time, category string, fields ...Field) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(stamp.Format(StampLayout))
	b.WriteString("] category=\"")
	b.WriteString(SingleLine(category))
	b.WriteString("\"")
	for _, f := range fields {
		b.WriteString(" ")
		b.WriteString(SingleLine(f.Key))
		b.WriteString("=\"")
		b.WriteString(SingleLine(f.Value))
		b.WriteString("\"")
	}
	b.WriteString("\n")
	return b.String()
}

// SingleLine replaces control characters with spaces and trims the result.
func SingleLine(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s))
}
