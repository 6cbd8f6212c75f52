package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/sale"
	"github.com/bitfsorg/libsale-go/sealedbid"
)

// AuthorizeInvest signs the invest authorization of investor for a
// fixed-price or pre-liquid open sale.
func (e *Engine) AuthorizeInvest(saleAddr, investor common.Address) (*sale.InvestAuth, error) {
	var auth *sale.InvestAuth
	err := e.authorize(saleAddr, func(h *hosted) error {
		switch k := h.sale.Config().Kind; k {
		case sale.KindFixedPrice, sale.KindPreLiquidOpen:
		default:
			return fmt.Errorf("%w: %s sales need dedicated terms", sale.ErrInvalidSignature, k)
		}
		sig, err := e.operator.Sign(sale.InvestDigest(investor, saleAddr, e.cfg.ChainID))
		if err != nil {
			return err
		}
		auth = &sale.InvestAuth{Signature: sig}
		return nil
	})
	return auth, err
}

// AuthorizeBid signs investor's sealed bid for an auction sale.
func (e *Engine) AuthorizeBid(saleAddr, investor common.Address, bid sealedbid.SealedBid) (*sale.InvestAuth, error) {
	var auth *sale.InvestAuth
	err := e.authorize(saleAddr, func(h *hosted) error {
		if h.sale.Config().Kind != sale.KindSealedBidAuction {
			return sale.ErrNotAuction
		}
		digest, err := sale.AuctionInvestDigest(investor, saleAddr, e.cfg.ChainID, bid)
		if err != nil {
			return err
		}
		sig, err := e.operator.Sign(digest)
		if err != nil {
			return err
		}
		auth = &sale.InvestAuth{Signature: sig, SealedBid: &bid}
		return nil
	})
	return auth, err
}

// AuthorizeSAFT signs SAFT terms for a pre-liquid approved sale. The
// signature is single use.
func (e *Engine) AuthorizeSAFT(saleAddr, investor common.Address, investAmount, tokenAllocationRate *uint256.Int, action sale.SAFTAction) ([]byte, error) {
	var sig []byte
	err := e.authorize(saleAddr, func(h *hosted) error {
		if k := h.sale.Config().Kind; k != sale.KindPreLiquidApproved {
			return fmt.Errorf("%w: %s sales have no SAFT terms", sale.ErrInvalidSignature, k)
		}
		if investAmount == nil || tokenAllocationRate == nil {
			return fmt.Errorf("%w: missing SAFT terms", sale.ErrInvalidSignature)
		}
		var err error
		sig, err = e.operator.Sign(sale.SAFTDigest(investor, saleAddr, e.cfg.ChainID, investAmount, tokenAllocationRate, action))
		return err
	})
	return sig, err
}

// AuthorizeTransfer signs the move of from's current position to to. The
// signature is single use.
func (e *Engine) AuthorizeTransfer(saleAddr, from, to common.Address) ([]byte, error) {
	var sig []byte
	err := e.authorize(saleAddr, func(h *hosted) error {
		id := h.positions.PositionIDOf(from)
		if id == 0 {
			return sale.ErrInvestorHasNoPosition
		}
		var err error
		sig, err = e.operator.Sign(sale.TransferDigest(from, to, saleAddr, e.cfg.ChainID, id))
		return err
	})
	return sig, err
}

func (e *Engine) authorize(saleAddr common.Address, fn func(h *hosted) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.operator == nil {
		return ErrNoOperator
	}
	h, ok := e.sales[saleAddr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSaleNotFound, saleAddr.Hex())
	}
	return fn(h)
}
