package builtin

import (
	"fmt"
)

// Accumulates a sequence of messages (e.g. validation failures).
type MessageAccumulator struct {
	// Accumulated messages.
	// This is a pointer so that accumulators created with WithPrefix share it.
	msgs *[]string
	// Prefix to apply to all messages.
	prefix string
}

func (ma *MessageAccumulator) IsEmpty() bool {
	return ma.msgs == nil || len(*ma.msgs) == 0
}

func (ma *MessageAccumulator) Messages() []string {
	if ma.msgs == nil {
		return nil
	}
	return (*ma.msgs)[:]
}

// Returns a new accumulator backed by the same collection, that will prefix each new message with
// a formatted string.
func (ma *MessageAccumulator) WithPrefix(format string, args ...interface{}) *MessageAccumulator {
	ma.init()
	return &MessageAccumulator{
		msgs:   ma.msgs,
		prefix: ma.prefix + fmt.Sprintf(format, args...),
	}
}

// Adds messages to the accumulator.
func (ma *MessageAccumulator) Add(msgs ...string) {
	ma.init()
	for _, m := range msgs {
		*ma.msgs = append(*ma.msgs, ma.prefix+m)
	}
}

// Adds a message to the accumulator
func (ma *MessageAccumulator) Addf(msg string, args ...interface{}) {
	ma.Add(fmt.Sprintf(msg, args...))
}

// Adds a message if predicate is false.
func (ma *MessageAccumulator) Require(predicate bool, msg string, args ...interface{}) {
	if !predicate {
		ma.Addf(msg, args...)
	}
}

func (ma *MessageAccumulator) RequireNoError(err error, msg string, args ...interface{}) {
	if err != nil {
		msg = msg + ": %v"
		args = append(args, err)
		ma.Addf(msg, args...)
	}
}

func (ma *MessageAccumulator) init() {
	if ma.msgs == nil {
		ma.msgs = &[]string{}
	}
}
