package sale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/sealedbid"
)

// SAFTAction distinguishes the two uses of signed SAFT terms.
type SAFTAction uint8

const (
	ActionInvest SAFTAction = iota
	ActionWithdrawExcessCapital
)

// packed builds a tightly packed encoding: addresses take 20 bytes,
// integers 32 bytes big-endian, actions one byte.
type packed []byte

func (p packed) addr(a common.Address) packed { return append(p, a.Bytes()...) }

func (p packed) word(v *uint256.Int) packed {
	b := v.Bytes32()
	return append(p, b[:]...)
}

func (p packed) u64(v uint64) packed { return p.word(uint256.NewInt(v)) }

func (p packed) hash() common.Hash { return crypto.Keccak256Hash(p) }

// InvestDigest is the digest the operator signs to let investor invest:
// keccak256(investor || sale || chainId).
func InvestDigest(investor, sale common.Address, chainID uint64) common.Hash {
	return packed(nil).addr(investor).addr(sale).u64(chainID).hash()
}

var sealedBidArgs = abi.Arguments{
	{Type: mustType("uint256")}, {Type: mustType("uint256")},
	{Type: mustType("uint256")}, {Type: mustType("uint256")},
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// EncodeSealedBid ABI-encodes a bid as
// (encryptedAmountOut, salt, publicKey.x, publicKey.y).
func EncodeSealedBid(bid sealedbid.SealedBid) ([]byte, error) {
	if bid.EncryptedAmountOut == nil || bid.Salt == nil || bid.PublicKey.X == nil || bid.PublicKey.Y == nil {
		return nil, fmt.Errorf("%w: incomplete sealed bid", ErrInvalidSalt)
	}
	return sealedBidArgs.Pack(
		bid.EncryptedAmountOut.ToBig(),
		bid.Salt.ToBig(),
		bid.PublicKey.X.ToBig(),
		bid.PublicKey.Y.ToBig(),
	)
}

// AuctionInvestDigest is the digest the operator signs for a sealed bid:
// keccak256(investor || sale || chainId || abi.encode(bid)).
func AuctionInvestDigest(investor, sale common.Address, chainID uint64, bid sealedbid.SealedBid) (common.Hash, error) {
	enc, err := EncodeSealedBid(bid)
	if err != nil {
		return common.Hash{}, err
	}
	p := packed(nil).addr(investor).addr(sale).u64(chainID)
	return append(p, enc...).hash(), nil
}

// SAFTDigest is the digest the operator signs over a SAFT:
// keccak256(investor || sale || chainId || investAmount || tokenAllocationRate || action).
func SAFTDigest(investor, sale common.Address, chainID uint64, investAmount, tokenAllocationRate *uint256.Int, action SAFTAction) common.Hash {
	p := packed(nil).addr(investor).addr(sale).u64(chainID).word(investAmount).word(tokenAllocationRate)
	return append(p, byte(action)).hash()
}

// TransferDigest is the digest the operator signs to let investor move
// position positionID to to:
// keccak256(investor || to || sale || chainId || positionId).
func TransferDigest(investor, to, sale common.Address, chainID, positionID uint64) common.Hash {
	return packed(nil).addr(investor).addr(to).addr(sale).u64(chainID).u64(positionID).hash()
}
