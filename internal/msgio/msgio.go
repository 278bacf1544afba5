// Package msgio carries runner messages across the worker process boundary
// as JSON Lines: one schema.Message object per line.
package msgio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"pkt.systems/avorun/schema"
)

// DecodeError reports an input line that was not a valid message document.
type DecodeError struct {
	line []byte
	err  error
}

func (e *DecodeError) Error() string {
	if e == nil || e.err == nil {
		return "message decode error"
	}
	return e.err.Error()
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Line returns the offending input line.
func (e *DecodeError) Line() []byte {
	if e == nil {
		return nil
	}
	return e.line
}

// Reader decodes a JSONL message stream.
type Reader struct {
	reader *bufio.Reader
}

// NewReader wraps r in a message stream reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// Next returns the next message. Undecodable lines surface as *DecodeError
// and the reader stays usable afterwards; io.EOF signals a clean end of
// stream.
func (r *Reader) Next(ctx context.Context) (schema.Message, error) {
	for {
		if ctx.Err() != nil {
			return schema.Message{}, ctx.Err()
		}
		line, err := r.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return schema.Message{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return schema.Message{}, err
			}
			continue
		}
		var msg schema.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return schema.Message{}, &DecodeError{line: append([]byte(nil), line...), err: err}
		}
		msg.Raw = append([]byte(nil), line...)
		return msg, nil
	}
}

// Writer encodes messages as JSONL. Put never fails loudly: the first write
// error is latched and later puts become no-ops, so emitters inside a worker
// cannot crash on a closed pipe.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewWriter wraps w in a message stream writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Put writes one message as a single line.
func (w *Writer) Put(msg schema.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	if err := w.enc.Encode(msg); err != nil {
		w.err = fmt.Errorf("encode message: %w", err)
	}
}

// Err returns the latched write failure, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
