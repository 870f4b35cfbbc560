package pos

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"posd/crypto"
)

// Key builders mirror the prefix-scoped layout from spec §6 verbatim.

func addrHex(a crypto.Address) string { return hex.EncodeToString(a.Bytes()) }

func epochHex(e Epoch) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], e)
	return hex.EncodeToString(b[:])
}

func validatorKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("/validators/%s", addrHex(addr)))
}

func validatorListKey() []byte { return []byte("/validators/_index") }

func consensusSetKey(epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/sets/consensus/%s", epochHex(epoch)))
}

func belowCapacitySetKey(epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/sets/below_cap/%s", epochHex(epoch)))
}

func belowThresholdSetKey(epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/sets/below_thresh/%s", epochHex(epoch)))
}

func bondKey(owner, val crypto.Address, start Epoch) []byte {
	return []byte(fmt.Sprintf("/bonds/%s/%s/%s", addrHex(owner), addrHex(val), epochHex(start)))
}

func bondIndexKey(owner, val crypto.Address) []byte {
	return []byte(fmt.Sprintf("/bonds/%s/%s/_index", addrHex(owner), addrHex(val)))
}

func unbondKey(owner, val crypto.Address, start, withdraw Epoch) []byte {
	return []byte(fmt.Sprintf("/unbonds/%s/%s/%s/%s", addrHex(owner), addrHex(val), epochHex(start), epochHex(withdraw)))
}

func unbondIndexKey(owner, val crypto.Address) []byte {
	return []byte(fmt.Sprintf("/unbonds/%s/%s/_index", addrHex(owner), addrHex(val)))
}

func redelegationKey(owner, src, dest crypto.Address, start Epoch) []byte {
	return []byte(fmt.Sprintf("/redelegations/%s/%s/%s/%s", addrHex(owner), addrHex(src), addrHex(dest), epochHex(start)))
}

func redelegationIndexKey(owner crypto.Address) []byte {
	return []byte(fmt.Sprintf("/redelegations/%s/_index", addrHex(owner)))
}

func redelegationBySrcIndexKey(src crypto.Address) []byte {
	return []byte(fmt.Sprintf("/redelegations/by_src/%s/_index", addrHex(src)))
}

func slashQueuedKey(procEpoch Epoch, val crypto.Address, infrEpoch Epoch, kind InfractionType) []byte {
	return []byte(fmt.Sprintf("/slashes/queued/%s/%s/%s/%d", epochHex(procEpoch), addrHex(val), epochHex(infrEpoch), kind))
}

func slashQueuedIndexKey(procEpoch Epoch) []byte {
	return []byte(fmt.Sprintf("/slashes/queued/%s/_index", epochHex(procEpoch)))
}

func slashFinalKey(val crypto.Address, infrEpoch Epoch) []byte {
	return []byte(fmt.Sprintf("/slashes/final/%s/%s", addrHex(val), epochHex(infrEpoch)))
}

func slashEvidenceByValidatorIndexKey(val crypto.Address) []byte {
	return []byte(fmt.Sprintf("/slashes/by_validator/%s/_index", addrHex(val)))
}

func rewardsSelfKey(val crypto.Address, epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/rewards/products/self/%s/%s", addrHex(val), epochHex(epoch)))
}

func rewardsDelegKey(val crypto.Address, epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/rewards/products/deleg/%s/%s", addrHex(val), epochHex(epoch)))
}

func epochKey() []byte { return []byte("/epoch") }

func inflationLastKey() []byte { return []byte("/inflation/last") }

func votingPowerSnapshotKey(val crypto.Address, epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/snapshots/voting_power/%s/%s", addrHex(val), epochHex(epoch)))
}

func totalVotingPowerSnapshotKey(epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/snapshots/total_voting_power/%s", epochHex(epoch)))
}

func proposerFractionKey(val crypto.Address, epoch Epoch) []byte {
	return []byte(fmt.Sprintf("/rewards/accrual/%s/%s", addrHex(val), epochHex(epoch)))
}

func escrowBalanceKey() []byte { return []byte("/escrow/pos") }

func slashPoolBalanceKey() []byte { return []byte("/escrow/slash_pool") }

func supplyKey() []byte { return []byte("/supply/total") }

func pendingParamsKey() []byte { return []byte("/params/_pending") }
