package market

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ListingStatus tracks the lifecycle of a listing. Active is the only stored
// steady state; terminal statuses exist on the in-flight record between the
// settlement transfers and the removal of the listing, and in the settlement
// events.
type ListingStatus uint8

const (
	ListingActive ListingStatus = iota
	ListingSold
	ListingAccepted
	ListingFinalized
	ListingFinalizedNoBid
)

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingSold, ListingAccepted, ListingFinalized, ListingFinalizedNoBid:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the listing lifecycle.
func (s ListingStatus) Terminal() bool {
	return s.Valid() && s != ListingActive
}

// Bid is the single standing offer on a listing. The bid amount is held by the
// marketplace's own account until the bid is displaced, settled, or the
// listing is bought outright.
type Bid struct {
	Bidder [20]byte
	Price  *big.Int
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := &Bid{Bidder: b.Bidder, Price: big.NewInt(0)}
	if b.Price != nil {
		clone.Price = new(big.Int).Set(b.Price)
	}
	return clone
}

// Listing is one sale offer for one token unit, combining a fixed redemption
// price with an open ascending auction. The identifier is the keccak256 hash
// of the asset contract address and the token id, so repeated lookups for the
// same pair always address the same slot.
type Listing struct {
	ID              [32]byte
	Seller          [20]byte
	AssetRef        [20]byte
	TokenID         *big.Int
	MinBidPrice     *big.Int
	RedemptionPrice *big.Int
	AuctionDuration uint64
	CreatedAt       int64
	ActiveBid       *Bid
	Status          ListingStatus
}

// ListingID derives the deterministic listing identifier for an asset
// contract and token id pair.
func ListingID(assetRef [20]byte, tokenID *big.Int) [32]byte {
	id := new(big.Int)
	if tokenID != nil {
		id.Set(tokenID)
	}
	return ethcrypto.Keccak256Hash(assetRef[:], id.Bytes())
}

// EndTime returns the logical timestamp at which the auction window closes.
func (l *Listing) EndTime() int64 {
	if l == nil {
		return 0
	}
	return l.CreatedAt + int64(l.AuctionDuration)
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.TokenID = cloneBigInt(l.TokenID)
	clone.MinBidPrice = cloneBigInt(l.MinBidPrice)
	clone.RedemptionPrice = cloneBigInt(l.RedemptionPrice)
	clone.ActiveBid = l.ActiveBid.Clone()
	return &clone
}

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance with non-nil amount fields. The original value is not
// mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if clone.TokenID.Sign() < 0 {
		return nil, fmt.Errorf("listing token id must be non-negative")
	}
	if clone.MinBidPrice.Sign() < 0 {
		return nil, fmt.Errorf("listing minimum bid must be non-negative")
	}
	if clone.RedemptionPrice.Cmp(clone.MinBidPrice) <= 0 {
		return nil, ErrInvalidPriceRelation
	}
	if clone.ActiveBid != nil {
		if clone.ActiveBid.Price == nil || clone.ActiveBid.Price.Cmp(clone.MinBidPrice) < 0 {
			return nil, ErrInvalidPriceRelation
		}
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid listing status: %d", clone.Status)
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
