package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Snapshot is a BodyAccessor over a body received from a remote client.
// Writes are kept so the caller can hand the new body back to the client.
type Snapshot struct {
	mu      sync.Mutex
	body    string
	written bool
}

func NewSnapshot(body string) *Snapshot {
	return &Snapshot{body: body}
}

func (s *Snapshot) Body(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body, nil
}

func (s *Snapshot) SetBody(_ context.Context, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
	s.written = true
	return nil
}

// Written returns the current body and whether SetBody was called.
func (s *Snapshot) Written() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body, s.written
}

// FileBody is a BodyAccessor over a local HTML file.
type FileBody struct {
	Path string
}

func (f FileBody) Body(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetBody replaces the file atomically via a temp file + rename.
func (f FileBody) SetBody(_ context.Context, body string) error {
	if f.Path == "" {
		return errors.New("body path is empty")
	}
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".timereport-body-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if st, err := os.Stat(f.Path); err == nil {
		mode = st.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, f.Path)
}

// StaticIdentity always reports the same host name.
type StaticIdentity string

func (s StaticIdentity) HostName(context.Context) (string, error) {
	return string(s), nil
}

// StaticMailbox always reports the same address.
type StaticMailbox string

func (s StaticMailbox) Address(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("mailbox address is unknown")
	}
	return string(s), nil
}

// TerminalDialogs shows dialogs on a terminal.
type TerminalDialogs struct {
	In  io.Reader
	Out io.Writer

	once   sync.Once
	reader *bufio.Reader
}

func (t *TerminalDialogs) Confirm(_ context.Context, message string) (bool, error) {
	t.once.Do(func() { t.reader = bufio.NewReader(t.In) })
	if _, err := fmt.Fprintf(t.Out, "%s\n[y/N] ", message); err != nil {
		return false, err
	}
	line, err := t.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true, nil
	}
	return false, nil
}

func (t *TerminalDialogs) Alert(_ context.Context, message string) error {
	_, err := fmt.Fprintln(t.Out, message)
	return err
}
