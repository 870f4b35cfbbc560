package events

import (
	"strconv"
	"strings"

	"posd/core/types"
)

const (
	EventBonded            = "pos.bonded"
	EventUnbonded          = "pos.unbonded"
	EventWithdrawn         = "pos.withdrawn"
	EventRedelegated       = "pos.redelegated"
	EventSlashed           = "pos.slashed"
	EventValidatorJailed   = "pos.validator_jailed"
	EventValidatorUnjailed = "pos.validator_unjailed"
	EventValidatorSetUpdate = "pos.validator_set_update"
	EventInflationMinted   = "pos.inflation_minted"
)

// Bonded signals a new or extended bond record.
type Bonded struct {
	Owner     string
	Validator string
	Amount    string
	Start     uint64
}

func (Bonded) EventType() string { return EventBonded }
func (e Bonded) Event() *types.Event {
	return &types.Event{Type: EventBonded, Attributes: map[string]string{
		"owner": e.Owner, "validator": e.Validator, "amount": e.Amount,
		"start_epoch": strconv.FormatUint(e.Start, 10),
	}}
}

// Unbonded signals a bond entering the unbonding queue.
type Unbonded struct {
	Owner         string
	Validator     string
	Amount        string
	WithdrawEpoch uint64
}

func (Unbonded) EventType() string { return EventUnbonded }
func (e Unbonded) Event() *types.Event {
	return &types.Event{Type: EventUnbonded, Attributes: map[string]string{
		"owner": e.Owner, "validator": e.Validator, "amount": e.Amount,
		"withdraw_epoch": strconv.FormatUint(e.WithdrawEpoch, 10),
	}}
}

// Withdrawn signals tokens released back to the owner.
type Withdrawn struct {
	Owner     string
	Validator string
	Amount    string
}

func (Withdrawn) EventType() string { return EventWithdrawn }
func (e Withdrawn) Event() *types.Event {
	return &types.Event{Type: EventWithdrawn, Attributes: map[string]string{
		"owner": e.Owner, "validator": e.Validator, "amount": e.Amount,
	}}
}

// Redelegated signals a src->dest stake movement.
type Redelegated struct {
	Owner  string
	Src    string
	Dest   string
	Amount string
	Start  uint64
	End    uint64
}

func (Redelegated) EventType() string { return EventRedelegated }
func (e Redelegated) Event() *types.Event {
	return &types.Event{Type: EventRedelegated, Attributes: map[string]string{
		"owner": e.Owner, "src": e.Src, "dest": e.Dest, "amount": e.Amount,
		"start_epoch": strconv.FormatUint(e.Start, 10),
		"end_epoch":   strconv.FormatUint(e.End, 10),
	}}
}

// Slashed reports a single applied cubic slash.
type Slashed struct {
	Validator       string
	Rate            string
	InfractionEpoch uint64
	Removed         string
}

func (Slashed) EventType() string { return EventSlashed }
func (e Slashed) Event() *types.Event {
	return &types.Event{Type: EventSlashed, Attributes: map[string]string{
		"validator": e.Validator, "rate": e.Rate,
		"infraction_epoch": strconv.FormatUint(e.InfractionEpoch, 10),
		"removed":          e.Removed,
	}}
}

// ValidatorJailed/ValidatorUnjailed bracket the jail overlay transitions.
type ValidatorJailed struct {
	Validator string
	JailEpoch uint64
}

func (ValidatorJailed) EventType() string { return EventValidatorJailed }
func (e ValidatorJailed) Event() *types.Event {
	return &types.Event{Type: EventValidatorJailed, Attributes: map[string]string{
		"validator": e.Validator, "jail_epoch": strconv.FormatUint(e.JailEpoch, 10),
	}}
}

type ValidatorUnjailed struct {
	Validator string
	Epoch     uint64
}

func (ValidatorUnjailed) EventType() string { return EventValidatorUnjailed }
func (e ValidatorUnjailed) Event() *types.Event {
	return &types.Event{Type: EventValidatorUnjailed, Attributes: map[string]string{
		"validator": e.Validator, "epoch": strconv.FormatUint(e.Epoch, 10),
	}}
}

// ValidatorSetUpdate reports the delta driven by the latest epoch boundary
// recompute.
type ValidatorSetUpdate struct {
	Epoch     uint64
	Added     []string
	Removed   []string
	Reordered []string
}

func (ValidatorSetUpdate) EventType() string { return EventValidatorSetUpdate }
func (e ValidatorSetUpdate) Event() *types.Event {
	return &types.Event{Type: EventValidatorSetUpdate, Attributes: map[string]string{
		"epoch":     strconv.FormatUint(e.Epoch, 10),
		"added":     strings.Join(e.Added, ","),
		"removed":   strings.Join(e.Removed, ","),
		"reordered": strings.Join(e.Reordered, ","),
	}}
}

// InflationMinted reports the PD controller's per-epoch mint.
type InflationMinted struct {
	Epoch  uint64
	Amount string
}

func (InflationMinted) EventType() string { return EventInflationMinted }
func (e InflationMinted) Event() *types.Event {
	return &types.Event{Type: EventInflationMinted, Attributes: map[string]string{
		"epoch": strconv.FormatUint(e.Epoch, 10), "amount": e.Amount,
	}}
}
