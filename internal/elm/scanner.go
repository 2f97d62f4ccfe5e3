package elm

import (
	"bytes"
	"strings"
	"time"

	"obd_diagnostics/internal/models"
)

// Scanner stitches arbitrary byte chunks into whole reply frames. Bytes are
// buffered until the '>' prompt appears; each prompt yields one RawReply.
// Multi-line replies stay one frame with embedded newlines; splitting them
// is the decoder's job, not the codec's.
type Scanner struct {
	buf []byte
	// echo holds the last command written, so a leading command echo can be
	// removed even before ATE0 takes effect.
	echo string
}

// NewScanner returns an empty frame scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// NoteSent records the command just written so its echo can be stripped
// from the next frame.
func (s *Scanner) NoteSent(command string) {
	s.echo = strings.TrimSpace(strings.ToUpper(command))
}

// Push appends a received chunk and returns all frames completed by it.
// Frames containing only whitespace are discarded.
func (s *Scanner) Push(chunk []byte, now time.Time) []models.RawReply {
	s.buf = append(s.buf, chunk...)

	var frames []models.RawReply
	for {
		idx := bytes.IndexByte(s.buf, Prompt)
		if idx < 0 {
			break
		}
		raw := s.buf[:idx]
		s.buf = s.buf[idx+1:]

		text := s.clean(string(raw))
		if text == "" {
			continue
		}
		frames = append(frames, models.RawReply{Text: text, ReceivedAt: now})
	}
	return frames
}

// Reset drops any partial frame, e.g. after a reconnect.
func (s *Scanner) Reset() {
	s.buf = nil
	s.echo = ""
}

// clean strips control characters and the command echo, and normalizes line
// endings to '\n' while preserving multi-line structure.
func (s *Scanner) clean(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == '\r':
			b.WriteByte('\n')
		case r == '\n':
			b.WriteByte('\n')
		case r < 0x20 || r == 0x7f:
			// drop NUL and other control noise
		default:
			b.WriteRune(r)
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s.echo != "" && strings.ToUpper(line) == s.echo {
			continue
		}
		if strings.ToUpper(line) == ReplySearching {
			// transient banner before the real reply
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
