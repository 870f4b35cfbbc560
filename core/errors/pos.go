package errors

import stderrors "errors"

// Validation-class errors: reject the transaction with no state change.
var (
	ErrUnknownValidator       = stderrors.New("pos: unknown validator")
	ErrInvalidAmount          = stderrors.New("pos: invalid amount")
	ErrSelfBondRequired       = stderrors.New("pos: validator must self-bond before accepting delegations")
	ErrRedelegationFrozen     = stderrors.New("pos: bond was redelegated too recently to redelegate again")
	ErrCommissionChangeTooBig = stderrors.New("pos: commission change exceeds max per-epoch delta")
	ErrCommissionOutOfRange   = stderrors.New("pos: commission rate must be within [0,1]")
	ErrWriteToCurrentEpoch    = stderrors.New("pos: pipelined write targeting the current epoch is not allowed")
)

// Balance-class errors.
var (
	ErrInsufficientBalance = stderrors.New("pos: insufficient balance")
	ErrInsufficientBond    = stderrors.New("pos: insufficient bonded amount")
)

// Jailed-actor restriction errors.
var (
	ErrValidatorJailed   = stderrors.New("pos: validator is jailed")
	ErrUnjailTooEarly    = stderrors.New("pos: unjail not permitted before jail_epoch + unbonding_len")
	ErrValidatorNotJailed = stderrors.New("pos: validator is not jailed")
)

// ErrInvariantViolation marks a deterministic internal inconsistency detected
// during epoch close. Per spec §7 this is fatal: the caller must abort the
// block rather than attempt local recovery.
var ErrInvariantViolation = stderrors.New("pos: invariant violation, node halt required")

// ErrDuplicateEvidence names the duplicate-evidence class. Ingest does not
// return it: a duplicate report is dropped silently and Ingest returns nil.
var ErrDuplicateEvidence = stderrors.New("pos: duplicate slash evidence")
