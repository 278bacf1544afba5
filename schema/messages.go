package schema

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle discriminator carried by runner messages.
type Status string

const (
	// StatusStarted marks the first message of every run.
	StatusStarted Status = "started"
	// StatusRunning is the heartbeat emitted while the worker is awaited.
	StatusRunning Status = "running"
	// StatusPass is the terminal status of a successful test.
	StatusPass Status = "pass"
	// StatusFail is the terminal status of a failed test assertion.
	StatusFail Status = "fail"
	// StatusError is the terminal status of a fault outside the test's own checks.
	StatusError Status = "error"
	// StatusInterrupted is the terminal status of a forcibly terminated run.
	StatusInterrupted Status = "interrupted"
)

// Finished reports whether the status terminates the message sequence.
func (s Status) Finished() bool {
	switch s {
	case StatusPass, StatusFail, StatusError, StatusInterrupted:
		return true
	}
	return false
}

// PayloadType discriminates messages that carry data rather than lifecycle state.
type PayloadType string

const (
	// PayloadStderr carries worker stderr output.
	PayloadStderr PayloadType = "stderr"
	// PayloadLog carries a log record forwarded from the worker.
	PayloadLog PayloadType = "log"
	// PayloadWhiteboard carries the test's free-form whiteboard content.
	PayloadWhiteboard PayloadType = "whiteboard"
	// PayloadEarlyState carries the worker's post-load state snapshot. It is
	// consumed by the orchestrator and never forwarded.
	PayloadEarlyState PayloadType = "early_state"
)

// Message is one entry in a run's status stream. Lifecycle messages set
// Status, payload messages set Type; the remaining fields are populated
// per shape and omitted otherwise.
type Message struct {
	Status     Status          `json:"status,omitempty"`
	Type       PayloadType     `json:"type,omitempty"`
	Text       string          `json:"text,omitempty"`
	FailReason string          `json:"fail_reason,omitempty"`
	FailClass  string          `json:"fail_class,omitempty"`
	Traceback  string          `json:"traceback,omitempty"`
	ClassName  string          `json:"class_name,omitempty"`
	Name       string          `json:"name,omitempty"`
	Timeout    float64         `json:"timeout,omitempty"`
	Time       float64         `json:"time,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// Finished reports whether the message terminates the stream.
func (m Message) Finished() bool { return m.Status.Finished() }

// Now returns the message timestamp: wall-clock seconds since the Unix epoch.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// StartedMessage opens a run's message sequence.
func StartedMessage() Message {
	return Message{Status: StatusStarted, Time: Now()}
}

// RunningMessage is the liveness heartbeat.
func RunningMessage() Message {
	return Message{Status: StatusRunning, Time: Now()}
}

// StderrMessage wraps worker stderr output.
func StderrMessage(text string) Message {
	return Message{Type: PayloadStderr, Text: text, Time: Now()}
}

// LogMessage wraps one forwarded log record.
func LogMessage(text string) Message {
	return Message{Type: PayloadLog, Text: text, Time: Now()}
}

// WhiteboardMessage wraps the test's whiteboard content.
func WhiteboardMessage(text string) Message {
	return Message{Type: PayloadWhiteboard, Text: text, Time: Now()}
}

// EarlyStateMessage reports the unit's identity and timeout once loading
// succeeded. A zero timeout means the run is unbounded.
func EarlyStateMessage(timeout float64, className, name string) Message {
	return Message{
		Type:      PayloadEarlyState,
		Timeout:   timeout,
		ClassName: className,
		Name:      name,
		Time:      Now(),
	}
}

// FinishedMessage closes a run's message sequence with the given outcome.
func FinishedMessage(status Status, failReason string) Message {
	return Message{Status: status, FailReason: failReason, Time: Now()}
}

// FinishedErrorMessage closes a run's message sequence with a terminal error
// carrying fault details.
func FinishedErrorMessage(failReason, failClass, traceback string) Message {
	return Message{
		Status:     StatusError,
		FailReason: failReason,
		FailClass:  failClass,
		Traceback:  traceback,
		Time:       Now(),
	}
}
