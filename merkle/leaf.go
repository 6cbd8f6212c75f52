package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/vesting"
)

var (
	addressT = mustType("address")
	uint256T = mustType("uint256")
	uint64T  = mustType("uint64")
	uint8T   = mustType("uint8")

	// vestingTuple is the static tuple
	// (uint8 type, uint64 start, uint64 duration, uint64 cliff,
	//  uint64 epochDuration, uint64 numberOfEpochs, uint64 tgeRate).
	// A static tuple ABI-encodes inline, so it is spelled out field by field.
	vestingTuple = abi.Arguments{
		{Type: uint8T}, {Type: uint64T}, {Type: uint64T}, {Type: uint64T},
		{Type: uint64T}, {Type: uint64T}, {Type: uint64T},
	}
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// LeafHash computes keccak256(keccak256(encoded)). Hashing twice keeps a
// 64-byte leaf preimage from ever being confused with an internal node.
func LeafHash(encoded []byte) common.Hash {
	inner := crypto.Keccak256(encoded)
	return crypto.Keccak256Hash(inner)
}

// ClaimLeaf builds the token-claim leaf bound to
// abi.encode(investor, amount, positionID, vestingConfig).
func ClaimLeaf(investor common.Address, amount *uint256.Int, positionID uint64, vc vesting.Config) (common.Hash, error) {
	args := append(abi.Arguments{{Type: addressT}, {Type: uint256T}, {Type: uint256T}}, vestingTuple...)
	values := append([]interface{}{investor, amount.ToBig(), new(uint256.Int).SetUint64(positionID).ToBig()}, vestingValues(vc)...)
	return packLeaf(args, values)
}

// ClaimLeafWithoutPosition builds the claim leaf used by sales whose
// investors hold no position identifier:
// abi.encode(investor, amount, vestingConfig).
func ClaimLeafWithoutPosition(investor common.Address, amount *uint256.Int, vc vesting.Config) (common.Hash, error) {
	args := append(abi.Arguments{{Type: addressT}, {Type: uint256T}}, vestingTuple...)
	values := append([]interface{}{investor, amount.ToBig()}, vestingValues(vc)...)
	return packLeaf(args, values)
}

// AcceptedCapitalLeaf builds the leaf attesting the capital an investor
// keeps after excess is returned: abi.encode(investor, acceptedRemainder).
func AcceptedCapitalLeaf(investor common.Address, accepted *uint256.Int) (common.Hash, error) {
	args := abi.Arguments{{Type: addressT}, {Type: uint256T}}
	return packLeaf(args, []interface{}{investor, accepted.ToBig()})
}

func vestingValues(vc vesting.Config) []interface{} {
	return []interface{}{
		uint8(vc.Type),
		vc.StartTimestamp,
		vc.DurationSeconds,
		vc.CliffDurationSeconds,
		vc.EpochDurationSeconds,
		vc.NumberOfEpochs,
		vc.TokenAllocationOnTGERate,
	}
}

func packLeaf(args abi.Arguments, values []interface{}) (common.Hash, error) {
	encoded, err := args.Pack(values...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return LeafHash(encoded), nil
}
