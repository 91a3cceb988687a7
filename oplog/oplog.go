package oplog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrClosed           = errors.New("log closed")
	ErrInvalidOperation = errors.New("invalid operation")
)

// Operation is the envelope the log orders and delivers. Params stay raw
// until the state machine decodes them per method.
type Operation struct {
	// ID is the client-assigned operation id, used to correlate a
	// submission with its local apply result.
	ID string `json:"id"`

	// Seq is assigned by the log on append; any value submitted by the
	// client is ignored. Sequence numbers start at 1 and increase by
	// one per appended operation.
	Seq uint64 `json:"seq,omitempty"`

	// Method names the transaction (add_task, complete_task, ...).
	Method string `json:"method"`

	// Signer is the identity submitting the operation.
	Signer string `json:"signer"`

	// Time is stamped once at submission. Handlers read timestamps from
	// here, never from the local clock, so applied state is identical
	// on every node.
	Time time.Time `json:"time"`

	// Params is the method-specific payload.
	Params json.RawMessage `json:"params,omitempty"`
}

// NewOperation builds a submission-ready envelope: fresh uuid, UTC
// timestamp, params encoded to JSON. Pass nil params for methods that
// take none.
func NewOperation(method, signer string, params interface{}) (Operation, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return Operation{}, fmt.Errorf("encode params: %w", err)
		}
		raw = data
	}

	return Operation{
		ID:     uuid.NewString(),
		Method: method,
		Signer: signer,
		Time:   time.Now().UTC(),
		Params: raw,
	}, nil
}

// ValidateOperation checks that an envelope is appendable.
func ValidateOperation(op Operation) error {
	if op.ID == "" || op.Method == "" || op.Signer == "" {
		return ErrInvalidOperation
	}
	return nil
}

// Log is the externally ordered operation sequence.
type Log interface {
	// Append adds an operation to the log and returns its assigned
	// sequence number.
	Append(op Operation) (uint64, error)

	// Replay invokes fn for every operation already in the log with
	// Seq >= fromSeq, in order, and returns when it reaches the
	// current end. A non-nil error from fn stops the replay.
	Replay(fromSeq uint64, fn func(Operation) error) error

	// Subscribe delivers operations with Seq >= fromSeq in order,
	// backlog first, then live appends. Delivery is gapless: a slow
	// consumer delays delivery, it never loses operations.
	Subscribe(fromSeq uint64) (LogSubscription, error)

	// LastSeq returns the highest sequence number in the log, 0 when
	// the log is empty.
	LastSeq() (uint64, error)

	// Close shuts down the log.
	Close() error
}

// LogSubscription represents an active ordered subscription.
type LogSubscription interface {
	// Operations returns the channel of incoming operations.
	// The channel is closed when the subscription ends.
	Operations() <-chan Operation

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}
