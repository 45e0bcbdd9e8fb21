// Package jsonrpc implements the Content-Length-framed JSON-RPC 2.0
// transport and codec spoken between this tool and a language server.
package jsonrpc

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
)

// headerRe matches a Content-Length header, tolerating an optional
// trailing Content-Type header, terminated by the blank line that
// separates headers from the payload.
var headerRe = regexp.MustCompile(`Content-Length: (\d+)\r\n(?:[^\r\n]+\r\n)*\r\n`)

// ReadFrame reads one Content-Length-framed message from rd: it
// accumulates header bytes until headerRe matches, then reads exactly N
// payload bytes, looping because a single Read may return short. It
// never partially consumes a frame on success. A stream that ends
// before the first header byte yields io.EOF itself, unwrapped.
func ReadFrame(rd *bufio.Reader) ([]byte, error) {
	var header []byte
	var length int
	for {
		b, err := rd.ReadByte()
		if err != nil {
			if err == io.EOF && len(header) == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read frame header: %w", err)
		}
		header = append(header, b)

		m := headerRe.FindSubmatch(header)
		if m == nil {
			if len(header) > 8192 {
				return nil, fmt.Errorf("read frame header: no Content-Length header in first %d bytes", len(header))
			}
			continue
		}
		n := 0
		if _, err := fmt.Sscanf(string(m[1]), "%d", &n); err != nil {
			return nil, fmt.Errorf("read frame header: invalid Content-Length %q: %w", m[1], err)
		}
		length = n
		break
	}

	payload := make([]byte, length)
	read := 0
	for read < length {
		n, err := rd.Read(payload[read:])
		read += n
		if err != nil {
			if err == io.EOF && read == length {
				break
			}
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return payload, nil
}

// WriteFrame prefixes payload with its Content-Length header and writes
// the whole frame as a single Write.
func WriteFrame(w io.Writer, payload []byte) error {
	frame := make([]byte, 0, len(payload)+32)
	frame = append(frame, []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload)))...)
	frame = append(frame, payload...)
	_, err := w.Write(frame)
	return err
}
