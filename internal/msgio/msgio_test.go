package msgio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"pkt.systems/avorun/schema"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Put(schema.StartedMessage())
	w.Put(schema.StderrMessage("warning: slow disk"))
	w.Put(schema.FinishedMessage(schema.StatusPass, ""))
	if err := w.Err(); err != nil {
		t.Fatalf("writer err: %v", err)
	}

	r := NewReader(&buf)
	ctx := context.Background()

	first, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Status != schema.StatusStarted {
		t.Fatalf("first status = %q", first.Status)
	}
	if len(first.Raw) == 0 {
		t.Fatal("raw line should be retained")
	}

	second, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Type != schema.PayloadStderr || second.Text != "warning: slow disk" {
		t.Fatalf("second = %+v", second)
	}

	third, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if !third.Finished() {
		t.Fatalf("third should be terminal: %+v", third)
	}

	if _, err := r.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("after drain err = %v, want EOF", err)
	}
}

func TestReaderSkipsBlankLines(t *testing.T) {
	input := "\n\n{\"status\":\"started\"}\n   \n{\"status\":\"pass\"}\n"
	r := NewReader(strings.NewReader(input))
	ctx := context.Background()

	msg, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Status != schema.StatusStarted {
		t.Fatalf("status = %q", msg.Status)
	}
	msg, err = r.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Status != schema.StatusPass {
		t.Fatalf("status = %q", msg.Status)
	}
}

func TestReaderDecodeErrorKeepsStreamUsable(t *testing.T) {
	input := "not json at all\n{\"status\":\"running\"}\n"
	r := NewReader(strings.NewReader(input))
	ctx := context.Background()

	_, err := r.Next(ctx)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if got := string(decodeErr.Line()); got != "not json at all" {
		t.Fatalf("line = %q", got)
	}

	msg, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("next after decode error: %v", err)
	}
	if msg.Status != schema.StatusRunning {
		t.Fatalf("status = %q", msg.Status)
	}
}

func TestReaderContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Next(ctx)
		done <- err
	}()
	cancel()
	// Unblock the pending read; the pipe write makes ReadBytes return.
	go pw.Write([]byte("{\"status\":\"running\"}\n"))

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			// A raced successful read is fine; a foreign error is not.
			t.Fatalf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return")
	}
}

type failWriter struct{ calls int }

func (w *failWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("pipe closed")
}

func TestWriterLatchesFirstError(t *testing.T) {
	fw := &failWriter{}
	w := NewWriter(fw)
	w.Put(schema.StartedMessage())
	w.Put(schema.RunningMessage())
	if err := w.Err(); err == nil {
		t.Fatal("expected latched error")
	}
	if fw.calls != 1 {
		t.Fatalf("writes after failure = %d, want puts to stop at 1", fw.calls)
	}
}
