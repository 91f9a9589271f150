package poolswitcher

import (
	"fmt"

	"github.com/pkg/errors"
)

// Operation identifies which miner action produced a Result.
type Operation string

const (
	OpPoolSwitch Operation = "pool_switch"
	OpReboot     Operation = "reboot"
)

// FailureKind classifies why a miner operation failed. Empty means success.
type FailureKind string

const (
	FailUnknownPoolKey    FailureKind = "unknown_pool_key"
	FailUnknownDeviceKind FailureKind = "unknown_device_kind"
	FailAuthentication    FailureKind = "authentication_failed"
	FailNavigation        FailureKind = "navigation_failed"
	FailSlotOutOfRange    FailureKind = "slot_out_of_range"
	FailFieldNotFound     FailureKind = "field_not_found"
	FailSession           FailureKind = "session_error"
)

// ProtocolError is a typed failure raised inside the device session protocol.
type ProtocolError struct {
	Kind   FailureKind
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func protocolErr(kind FailureKind, cause error, format string, args ...any) error {
	return &ProtocolError{Kind: kind, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// failureKind extracts the typed kind from err, defaulting to session_error
// for anything the protocol could not classify (driver faults, teardown).
func failureKind(err error) FailureKind {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return FailSession
}

// Result is the outcome of one (miner, operation) pair.
type Result struct {
	Miner     string
	Operation Operation
	Failure   FailureKind
	Detail    string
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Failure == "" }

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s/%s: ok", r.Miner, r.Operation)
	}
	return fmt.Sprintf("%s/%s: %s (%s)", r.Miner, r.Operation, r.Failure, r.Detail)
}

func successResult(miner string, op Operation) Result {
	return Result{Miner: miner, Operation: op}
}

func failedResult(miner string, op Operation, err error) Result {
	return Result{
		Miner:     miner,
		Operation: op,
		Failure:   failureKind(err),
		Detail:    err.Error(),
	}
}
