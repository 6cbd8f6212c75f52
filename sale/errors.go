package sale

import "errors"

// Authorization errors.
var (
	// ErrNotCalledByLegion indicates a caller other than the operator bouncer.
	ErrNotCalledByLegion = errors.New("sale: caller is not legion")

	// ErrNotCalledByProject indicates a caller other than the project admin.
	ErrNotCalledByProject = errors.New("sale: caller is not the project")

	// ErrNotCalledByLegionOrProject indicates a caller that is neither operator nor project.
	ErrNotCalledByLegionOrProject = errors.New("sale: caller is neither legion nor the project")
)

// Phase errors.
var (
	// ErrSaleHasEnded indicates the sale no longer accepts investments or was already ended.
	ErrSaleHasEnded = errors.New("sale: sale has ended")

	// ErrSaleHasNotEnded indicates an action that requires the sale to be over.
	ErrSaleHasNotEnded = errors.New("sale: sale has not ended")

	// ErrSaleIsCanceled indicates the sale was canceled.
	ErrSaleIsCanceled = errors.New("sale: sale is canceled")

	// ErrSaleIsNotCanceled indicates an action reserved for canceled sales.
	ErrSaleIsNotCanceled = errors.New("sale: sale is not canceled")

	// ErrSalePaused indicates the sale is paused.
	ErrSalePaused = errors.New("sale: sale is paused")

	// ErrPrefundAllocationPeriodNotEnded indicates an investment between prefund and main sale.
	ErrPrefundAllocationPeriodNotEnded = errors.New("sale: prefund allocation period not ended")

	// ErrRefundPeriodIsOver indicates a refund after the refund window closed.
	ErrRefundPeriodIsOver = errors.New("sale: refund period is over")

	// ErrRefundPeriodIsNotOver indicates an action that waits for the refund window to close.
	ErrRefundPeriodIsNotOver = errors.New("sale: refund period is not over")

	// ErrResultsNotPublished indicates sale results have not been published.
	ErrResultsNotPublished = errors.New("sale: results not published")

	// ErrCapitalRaisedNotPublished indicates capital raised has not been published.
	ErrCapitalRaisedNotPublished = errors.New("sale: capital raised not published")

	// ErrTokensNotSupplied indicates the project has not supplied the ask tokens.
	ErrTokensNotSupplied = errors.New("sale: tokens not supplied")

	// ErrAskTokenUnavailable indicates no ask token is configured yet.
	ErrAskTokenUnavailable = errors.New("sale: ask token unavailable")

	// ErrPublicationLocked indicates an auction whose result publication has begun.
	ErrPublicationLocked = errors.New("sale: result publication locked")

	// ErrPublicationNotLocked indicates results published before the publication lock.
	ErrPublicationNotLocked = errors.New("sale: result publication not locked")

	// ErrPrivateKeyNotPublished indicates bid decryption before the key is public.
	ErrPrivateKeyNotPublished = errors.New("sale: private key not published")

	// ErrNotAuction indicates an auction-only action on another sale kind.
	ErrNotAuction = errors.New("sale: not a sealed-bid auction")
)

// Once-only violations.
var (
	// ErrAlreadyRefunded indicates the investor already refunded.
	ErrAlreadyRefunded = errors.New("sale: investor already refunded")

	// ErrAlreadySettled indicates the investor already claimed the token allocation.
	ErrAlreadySettled = errors.New("sale: investor already settled")

	// ErrAlreadyClaimedExcess indicates the investor already withdrew excess capital.
	ErrAlreadyClaimedExcess = errors.New("sale: investor already claimed excess capital")

	// ErrTokensAlreadySupplied indicates tokens were already supplied.
	ErrTokensAlreadySupplied = errors.New("sale: tokens already supplied")

	// ErrCapitalAlreadyWithdrawn indicates the project already withdrew capital.
	ErrCapitalAlreadyWithdrawn = errors.New("sale: capital already withdrawn")

	// ErrTokensAlreadyAllocated indicates sale results were already published.
	ErrTokensAlreadyAllocated = errors.New("sale: tokens already allocated")

	// ErrCapitalRaisedAlreadyPublished indicates capital raised was already published.
	ErrCapitalRaisedAlreadyPublished = errors.New("sale: capital raised already published")

	// ErrPublicationAlreadyLocked indicates the publication lock was already set.
	ErrPublicationAlreadyLocked = errors.New("sale: result publication already locked")

	// ErrPrivateKeyAlreadyPublished indicates the auction private key was already published.
	ErrPrivateKeyAlreadyPublished = errors.New("sale: private key already published")
)

// Proof and signature errors.
var (
	// ErrInvalidMerkleProof indicates a proof that does not match the published root.
	ErrInvalidMerkleProof = errors.New("sale: invalid merkle proof")

	// ErrInvalidSignature indicates a signature not produced by the operator signer.
	ErrInvalidSignature = errors.New("sale: invalid signature")

	// ErrSignatureAlreadyUsed indicates a replayed one-time signature.
	ErrSignatureAlreadyUsed = errors.New("sale: signature already used")

	// ErrInvalidSalt indicates a sealed bid whose salt is not the investor's address.
	ErrInvalidSalt = errors.New("sale: invalid sealed bid salt")

	// ErrInvalidBidPublicKey indicates a sealed bid or sale key that is not the auction key.
	ErrInvalidBidPublicKey = errors.New("sale: invalid bid public key")

	// ErrInvalidPrivateKey indicates a private key that does not match the auction key.
	ErrInvalidPrivateKey = errors.New("sale: invalid private key")
)

// Arithmetic and parameter errors.
var (
	// ErrInvalidConfig indicates a sale configuration rejected at construction.
	ErrInvalidConfig = errors.New("sale: invalid configuration")

	// ErrZeroAddress indicates a required address is zero.
	ErrZeroAddress = errors.New("sale: zero address")

	// ErrInvalidPeriod indicates a duration outside its bounds.
	ErrInvalidPeriod = errors.New("sale: invalid period")

	// ErrInvalidInvestAmount indicates an investment below the minimum.
	ErrInvalidInvestAmount = errors.New("sale: invalid invest amount")

	// ErrInvestAmountExceedsTerms indicates capital above the signed SAFT amount.
	ErrInvestAmountExceedsTerms = errors.New("sale: invested capital exceeds signed terms")

	// ErrInvalidFeeAmount indicates a supplied fee that is not exactly bps * amount / 10000.
	ErrInvalidFeeAmount = errors.New("sale: invalid fee amount")

	// ErrInvalidTokenAmountSupplied indicates a supply that differs from the allocation.
	ErrInvalidTokenAmountSupplied = errors.New("sale: invalid token amount supplied")

	// ErrInvalidTokensAllocated indicates a zero token allocation.
	ErrInvalidTokensAllocated = errors.New("sale: invalid tokens allocated")

	// ErrInvalidCapitalRaised indicates capital raised above the capital invested.
	ErrInvalidCapitalRaised = errors.New("sale: invalid capital raised")

	// ErrCapitalNotRaised indicates a withdrawal with nothing raised.
	ErrCapitalNotRaised = errors.New("sale: capital not raised")

	// ErrInvalidRoot indicates a zero Merkle root.
	ErrInvalidRoot = errors.New("sale: invalid merkle root")

	// ErrAskTokenMismatch indicates a published ask token that differs from the configured one.
	ErrAskTokenMismatch = errors.New("sale: ask token mismatch")

	// ErrInvestorHasNoPosition indicates the investor holds no position in the sale.
	ErrInvestorHasNoPosition = errors.New("sale: investor has no position")

	// ErrInvalidRefundAmount indicates a refund of zero capital.
	ErrInvalidRefundAmount = errors.New("sale: invalid refund amount")

	// ErrInvalidWithdrawAmount indicates a withdrawal of zero or more than the invested capital.
	ErrInvalidWithdrawAmount = errors.New("sale: invalid withdraw amount")

	// ErrInvalidVestingConfig indicates a vesting schedule rejected by validation.
	ErrInvalidVestingConfig = errors.New("sale: invalid vesting config")

	// ErrZeroVestingAddress indicates a release without a vesting wallet.
	ErrZeroVestingAddress = errors.New("sale: investor has no vesting wallet")

	// ErrVestingFactoryMismatch indicates the vesting collaborator is not deployed at the registry's factory address.
	ErrVestingFactoryMismatch = errors.New("sale: vesting factory mismatch")

	// ErrInvalidPositionTransfer indicates a position that cannot move.
	ErrInvalidPositionTransfer = errors.New("sale: invalid position transfer")

	// ErrConservation indicates the positions stopped summing to total capital invested.
	ErrConservation = errors.New("sale: invested capital not conserved")
)

// ErrorClass groups rejections by their cause.
type ErrorClass int

const (
	// ClassNone is returned for nil errors.
	ClassNone ErrorClass = iota
	ClassAuthorization
	ClassPhase
	ClassOnceOnly
	ClassProof
	ClassParameter
	// ClassExternal covers failures raised by collaborators such as the token ledger.
	ClassExternal
)

// String returns the class name.
func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassAuthorization:
		return "authorization"
	case ClassPhase:
		return "phase"
	case ClassOnceOnly:
		return "once-only"
	case ClassProof:
		return "proof"
	case ClassParameter:
		return "parameter"
	default:
		return "external"
	}
}

var classes = map[ErrorClass][]error{
	ClassAuthorization: {ErrNotCalledByLegion, ErrNotCalledByProject, ErrNotCalledByLegionOrProject},
	ClassPhase: {
		ErrSaleHasEnded, ErrSaleHasNotEnded, ErrSaleIsCanceled, ErrSaleIsNotCanceled, ErrSalePaused,
		ErrPrefundAllocationPeriodNotEnded, ErrRefundPeriodIsOver, ErrRefundPeriodIsNotOver,
		ErrResultsNotPublished, ErrCapitalRaisedNotPublished, ErrTokensNotSupplied, ErrAskTokenUnavailable,
		ErrPublicationLocked, ErrPublicationNotLocked, ErrPrivateKeyNotPublished, ErrNotAuction,
	},
	ClassOnceOnly: {
		ErrAlreadyRefunded, ErrAlreadySettled, ErrAlreadyClaimedExcess, ErrTokensAlreadySupplied,
		ErrCapitalAlreadyWithdrawn, ErrTokensAlreadyAllocated, ErrCapitalRaisedAlreadyPublished,
		ErrPublicationAlreadyLocked, ErrPrivateKeyAlreadyPublished,
	},
	ClassProof: {
		ErrInvalidMerkleProof, ErrInvalidSignature, ErrSignatureAlreadyUsed, ErrInvalidSalt,
		ErrInvalidBidPublicKey, ErrInvalidPrivateKey,
	},
	ClassParameter: {
		ErrInvalidConfig, ErrZeroAddress, ErrInvalidPeriod, ErrInvalidInvestAmount, ErrInvestAmountExceedsTerms,
		ErrInvalidFeeAmount, ErrInvalidTokenAmountSupplied, ErrInvalidTokensAllocated, ErrInvalidCapitalRaised,
		ErrCapitalNotRaised, ErrInvalidRoot, ErrAskTokenMismatch, ErrInvestorHasNoPosition,
		ErrInvalidRefundAmount, ErrInvalidWithdrawAmount, ErrInvalidVestingConfig, ErrZeroVestingAddress,
		ErrVestingFactoryMismatch, ErrInvalidPositionTransfer, ErrConservation,
	},
}

// Class reports which group of the error taxonomy err belongs to.
func Class(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	for _, c := range []ErrorClass{ClassAuthorization, ClassPhase, ClassOnceOnly, ClassProof, ClassParameter} {
		for _, sentinel := range classes[c] {
			if errors.Is(err, sentinel) {
				return c
			}
		}
	}
	return ClassExternal
}
