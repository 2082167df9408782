package mjai

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// maxLine bounds a single action line; meta payloads with q-values can be long.
const maxLine = 1 << 20

// Stream speaks mjai as JSON lines: each batch of events goes out as one JSON
// array per line and each reaction comes back as one object per line.
type Stream struct {
	w       io.Writer
	scanner *bufio.Scanner
}

// NewStream reads actions from r and writes events to w.
func NewStream(r io.Reader, w io.Writer) *Stream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Stream{w: w, scanner: scanner}
}

// Send writes one batch as a single line.
func (s *Stream) Send(events []Event) error {
	b, err := MarshalBatch(events)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// ReadLine returns the next non-blank line. It returns io.EOF when the peer
// closes its side.
func (s *Stream) ReadLine() ([]byte, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return bytes.Clone(line), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read action: %w", err)
	}
	return nil, io.EOF
}

// ReadAction reads and decodes the next action line.
func (s *Stream) ReadAction() (*Action, error) {
	line, err := s.ReadLine()
	if err != nil {
		return nil, err
	}
	return DecodeAction(line)
}
