package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

var (
	errNilState            = errors.New("market engine: state not configured")
	errNilTokenLedger      = errors.New("market engine: token ledger not configured")
	errNilAssetLedger      = errors.New("market engine: asset ledger not configured")
	errNilCommissionWallet = errors.New("market engine: commission wallet not configured")
)

const (
	moduleName = "market"

	// DefaultMinAuctionDuration is the floor for auction windows, in seconds.
	DefaultMinAuctionDuration uint64 = 10800

	// RoleOperator gates finalization and commission policy mutations.
	RoleOperator = "ROLE_MARKET_OPERATOR"
)

// Context carries the resolved caller identity into an engine operation. The
// host's identity resolution happens outside the engine; passing the result
// explicitly keeps every operation deterministic and unit-testable.
type Context struct {
	Caller [20]byte
}

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id [32]byte) (*Listing, bool, error)
	ListingDelete(id [32]byte) error
	HasRole(role string, addr [20]byte) bool
	CommissionWallet() ([20]byte, bool, error)
	SetCommissionWallet(addr [20]byte) error
	CommissionPercent() (uint32, bool, error)
	SetCommissionPercent(percent uint32) error
}

// TokenLedger is the external fungible-token collaborator. Transfer moves the
// ledger's own funds of `from`; TransferFrom additionally consumes the
// allowance `owner` granted to `spender`. Allowance reports that grant so the
// engine can validate an entire settlement before moving any funds.
type TokenLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferFrom(spender, owner, to [20]byte, amount *big.Int) error
}

// AssetLedger is the external non-fungible-token collaborator.
type AssetLedger interface {
	OwnerOf(asset [20]byte, tokenID *big.Int) ([20]byte, bool, error)
	Approved(asset [20]byte, owner [20]byte, tokenID *big.Int) ([20]byte, bool, error)
	TransferAsset(asset [20]byte, from, to [20]byte, tokenID *big.Int) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine drives the listing/auction state machine and the escrow settlement
// around it. All fund and asset movement goes through the configured ledger
// collaborators; the engine's own address acts as the escrow account holding
// standing bids.
type Engine struct {
	state       engineState
	tokens      TokenLedger
	assets      AssetLedger
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	nowFn       func() int64
	marketAddr  [20]byte
	minDuration uint64
}

// NewEngine creates a market engine with a no-op emitter and the default
// auction duration floor. Callers configure state, ledgers, and the market
// address before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
		minDuration: DefaultMinAuctionDuration,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenLedger configures the fungible-token collaborator.
func (e *Engine) SetTokenLedger(ledger TokenLedger) { e.tokens = ledger }

// SetAssetLedger configures the non-fungible-token collaborator.
func (e *Engine) SetAssetLedger(ledger AssetLedger) { e.assets = ledger }

// SetMarketAddress configures the engine's own identity, used as the escrow
// account and as the expected approval target for listed tokens.
func (e *Engine) SetMarketAddress(addr [20]byte) { e.marketAddr = addr }

// SetMinAuctionDuration overrides the auction duration floor. Zero resets the
// default.
func (e *Engine) SetMinAuctionDuration(seconds uint64) {
	if seconds == 0 {
		e.minDuration = DefaultMinAuctionDuration
		return
	}
	e.minDuration = seconds
}

// SetPauses wires the module pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokenLedger
	}
	if e.assets == nil {
		return errNilAssetLedger
	}
	return nil
}

func (e *Engine) requireOperator(ctx Context) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(RoleOperator, ctx.Caller) {
		return ErrPermissionDenied
	}
	return nil
}

// loadActive fetches the listing for the pair and rejects anything that is not
// in the active steady state.
func (e *Engine) loadActive(assetRef [20]byte, tokenID *big.Int) (*Listing, error) {
	listing, ok, err := e.state.ListingGet(ListingID(assetRef, tokenID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	if listing.Status != ListingActive {
		return nil, ErrAlreadySettled
	}
	return listing, nil
}

// requireSpendable checks that the payer holds amount and has granted the
// market an allowance covering it, so the settlement's delegated transfers
// cannot fail partway through.
func (e *Engine) requireSpendable(payer [20]byte, amount *big.Int) error {
	balance, err := e.tokens.BalanceOf(payer)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	allowance, err := e.tokens.Allowance(payer, e.marketAddr)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// requireSellerOwnership rejects settlement when the seller parted with the
// token after listing it.
func (e *Engine) requireSellerOwnership(listing *Listing) error {
	owner, ok, err := e.assets.OwnerOf(listing.AssetRef, listing.TokenID)
	if err != nil {
		return err
	}
	if !ok || owner != listing.Seller {
		return ErrSellerNotOwner
	}
	return nil
}

func (e *Engine) commissionPercent() (uint32, error) {
	percent, ok, err := e.state.CommissionPercent()
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultCommissionPercent, nil
	}
	return percent, nil
}

// split resolves the configured policy and divides the price. A configured
// wallet is only required when the commission share is non-zero.
func (e *Engine) split(price *big.Int) (net, commission *big.Int, wallet [20]byte, err error) {
	percent, err := e.commissionPercent()
	if err != nil {
		return nil, nil, [20]byte{}, err
	}
	net, commission, err = SplitCommission(price, percent)
	if err != nil {
		return nil, nil, [20]byte{}, err
	}
	if commission.Sign() > 0 {
		configured, ok, walletErr := e.state.CommissionWallet()
		if walletErr != nil {
			return nil, nil, [20]byte{}, walletErr
		}
		if !ok || configured == ([20]byte{}) {
			return nil, nil, [20]byte{}, errNilCommissionWallet
		}
		wallet = configured
	}
	return net, commission, wallet, nil
}

// CreateListing lists a token for sale. The caller must own the token and must
// have approved the marketplace for its transfer; the pair must not already be
// listed.
func (e *Engine) CreateListing(ctx Context, assetRef [20]byte, tokenID, minBidPrice, redemptionPrice *big.Int, auctionDuration uint64) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	minBid := cloneBigInt(minBidPrice)
	redemption := cloneBigInt(redemptionPrice)
	if minBid.Sign() < 0 || redemption.Cmp(minBid) <= 0 {
		return nil, ErrInvalidPriceRelation
	}
	if auctionDuration < e.minDuration {
		return nil, ErrInvalidDuration
	}
	owner, ok, err := e.assets.OwnerOf(assetRef, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok || owner != ctx.Caller {
		return nil, ErrPermissionDenied
	}
	approved, ok, err := e.assets.Approved(assetRef, owner, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok || approved != e.marketAddr {
		return nil, ErrApprovalMissing
	}
	id := ListingID(assetRef, tokenID)
	if _, exists, err := e.state.ListingGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrListingExists
	}
	listing := &Listing{
		ID:              id,
		Seller:          ctx.Caller,
		AssetRef:        assetRef,
		TokenID:         cloneBigInt(tokenID),
		MinBidPrice:     minBid,
		RedemptionPrice: redemption,
		AuctionDuration: auctionDuration,
		CreatedAt:       e.now(),
		Status:          ListingActive,
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(listing))
	return listing.Clone(), nil
}

// MakeOffer places or replaces the standing bid on a listing. The bidder's
// funds and the escrow balance are validated before anything moves, then the
// new bid is pulled into escrow before the displaced bidder is refunded, so a
// failure aborts the call with no refund issued and no state change.
func (e *Engine) MakeOffer(ctx Context, assetRef [20]byte, tokenID, offerPrice *big.Int) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	listing, err := e.loadActive(assetRef, tokenID)
	if err != nil {
		return nil, err
	}
	price := cloneBigInt(offerPrice)
	if price.Cmp(listing.MinBidPrice) < 0 {
		return nil, ErrInvalidPriceRelation
	}
	previous := listing.ActiveBid
	if previous != nil && price.Cmp(previous.Price) <= 0 {
		return nil, ErrOfferNotHigher
	}
	if err := e.requireSpendable(ctx.Caller, price); err != nil {
		return nil, err
	}
	if previous != nil {
		escrow, err := e.tokens.BalanceOf(e.marketAddr)
		if err != nil {
			return nil, err
		}
		if escrow.Cmp(previous.Price) < 0 {
			return nil, fmt.Errorf("market: escrow balance below standing bid")
		}
	}
	if err := e.tokens.TransferFrom(e.marketAddr, ctx.Caller, e.marketAddr, price); err != nil {
		return nil, fmt.Errorf("market: escrow bid amount: %w", err)
	}
	if previous != nil {
		if err := e.tokens.Transfer(e.marketAddr, previous.Bidder, previous.Price); err != nil {
			return nil, fmt.Errorf("market: refund displaced bid: %w", err)
		}
	}
	listing.ActiveBid = &Bid{Bidder: ctx.Caller, Price: price}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewOfferCreatedEvent(listing, listing.ActiveBid))
	return listing.Clone(), nil
}

// BuyListing settles a listing at its fixed redemption price. The buyer's
// funds and the seller's continued ownership are validated before the first
// transfer so a failure cannot leave a partially settled balance behind. The
// price is split between seller and commission wallet, any standing bid is
// refunded in full, and the token moves to the buyer.
func (e *Engine) BuyListing(ctx Context, assetRef [20]byte, tokenID *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	listing, err := e.loadActive(assetRef, tokenID)
	if err != nil {
		return err
	}
	if err := e.requireSpendable(ctx.Caller, listing.RedemptionPrice); err != nil {
		return err
	}
	if err := e.requireSellerOwnership(listing); err != nil {
		return err
	}
	net, commission, wallet, err := e.split(listing.RedemptionPrice)
	if err != nil {
		return err
	}
	sellerBefore, err := e.tokens.BalanceOf(listing.Seller)
	if err != nil {
		return err
	}
	if err := e.tokens.TransferFrom(e.marketAddr, ctx.Caller, listing.Seller, net); err != nil {
		return fmt.Errorf("market: pay seller: %w", err)
	}
	if commission.Sign() > 0 {
		if err := e.tokens.TransferFrom(e.marketAddr, ctx.Caller, wallet, commission); err != nil {
			return fmt.Errorf("market: pay commission: %w", err)
		}
	}
	sellerAfter, err := e.tokens.BalanceOf(listing.Seller)
	if err != nil {
		return err
	}
	gained := new(big.Int).Sub(sellerAfter, sellerBefore)
	if gained.Cmp(net) != 0 {
		return ErrUnexpectedTransferAmount
	}
	if bid := listing.ActiveBid; bid != nil {
		if err := e.tokens.Transfer(e.marketAddr, bid.Bidder, bid.Price); err != nil {
			return fmt.Errorf("market: refund standing bid: %w", err)
		}
	}
	if err := e.assets.TransferAsset(assetRef, listing.Seller, ctx.Caller, listing.TokenID); err != nil {
		return fmt.Errorf("market: transfer token: %w", err)
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return err
	}
	listing.Status = ListingSold
	e.emit(NewListingPurchasedEvent(listing, ctx.Caller))
	return nil
}

// AcceptOffer settles the standing bid early at the seller's request.
func (e *Engine) AcceptOffer(ctx Context, assetRef [20]byte, tokenID *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	listing, err := e.loadActive(assetRef, tokenID)
	if err != nil {
		return err
	}
	if listing.Seller != ctx.Caller {
		return ErrPermissionDenied
	}
	if listing.ActiveBid == nil {
		return ErrNoActiveOffer
	}
	return e.settleBid(listing, ListingAccepted)
}

// FinalizeListing closes an expired auction. With a standing bid it settles
// exactly like AcceptOffer; without one the listing is removed with no fund
// movement. Operator-gated.
func (e *Engine) FinalizeListing(ctx Context, assetRef [20]byte, tokenID *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOperator(ctx); err != nil {
		return err
	}
	listing, err := e.loadActive(assetRef, tokenID)
	if err != nil {
		return err
	}
	if e.now() < listing.EndTime() {
		return ErrAuctionRunning
	}
	if listing.ActiveBid != nil {
		return e.settleBid(listing, ListingFinalized)
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return err
	}
	listing.Status = ListingFinalizedNoBid
	e.emit(NewListingFinishedNoOfferEvent(listing))
	return nil
}

// settleBid pays the escrowed bid out to the seller and commission wallet,
// moves the token to the bidder, and removes the listing. The seller's
// continued ownership is verified before any payout so a stale listing cannot
// drain the escrow.
func (e *Engine) settleBid(listing *Listing, status ListingStatus) error {
	if err := e.requireSellerOwnership(listing); err != nil {
		return err
	}
	bid := listing.ActiveBid
	net, commission, wallet, err := e.split(bid.Price)
	if err != nil {
		return err
	}
	if net.Sign() > 0 {
		if err := e.tokens.Transfer(e.marketAddr, listing.Seller, net); err != nil {
			return fmt.Errorf("market: pay seller: %w", err)
		}
	}
	if commission.Sign() > 0 {
		if err := e.tokens.Transfer(e.marketAddr, wallet, commission); err != nil {
			return fmt.Errorf("market: pay commission: %w", err)
		}
	}
	if err := e.assets.TransferAsset(listing.AssetRef, listing.Seller, bid.Bidder, listing.TokenID); err != nil {
		return fmt.Errorf("market: transfer token: %w", err)
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return err
	}
	listing.Status = status
	e.emit(NewOfferAcceptedEvent(listing, bid))
	return nil
}

// GetListing returns a copy of the stored listing for the identifier.
func (e *Engine) GetListing(id [32]byte) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.ListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing.Clone(), nil
}

// SetCommissionWallet stores the wallet that receives commission shares.
// Operator-gated.
func (e *Engine) SetCommissionWallet(ctx Context, wallet [20]byte) error {
	if err := e.requireOperator(ctx); err != nil {
		return err
	}
	if wallet == ([20]byte{}) {
		return errNilCommissionWallet
	}
	return e.state.SetCommissionWallet(wallet)
}

// SetCommissionPercent stores the commission percentage applied to future
// settlements. Operator-gated; values above MaxCommissionPercent are rejected.
func (e *Engine) SetCommissionPercent(ctx Context, percent uint32) error {
	if err := e.requireOperator(ctx); err != nil {
		return err
	}
	if percent > MaxCommissionPercent {
		return ErrInvalidCommissionPercent
	}
	return e.state.SetCommissionPercent(percent)
}
