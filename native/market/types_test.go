package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestListingIDDeterministic(t *testing.T) {
	asset := newTestAddress(0xA0)
	other := newTestAddress(0xA1)

	id := ListingID(asset, big.NewInt(7))
	if id != ListingID(asset, big.NewInt(7)) {
		t.Fatalf("same pair must derive the same identifier")
	}
	if id == ListingID(asset, big.NewInt(8)) {
		t.Fatalf("different token ids must derive different identifiers")
	}
	if id == ListingID(other, big.NewInt(7)) {
		t.Fatalf("different contracts must derive different identifiers")
	}
}

func TestListingEndTime(t *testing.T) {
	listing := &Listing{CreatedAt: 1000, AuctionDuration: 500}
	if got := listing.EndTime(); got != 1500 {
		t.Fatalf("end time: got %d, want 1500", got)
	}
	var nilListing *Listing
	if got := nilListing.EndTime(); got != 0 {
		t.Fatalf("nil listing end time: got %d", got)
	}
}

func TestListingCloneIsDeep(t *testing.T) {
	listing := &Listing{
		Seller:          newTestAddress(0x01),
		AssetRef:        newTestAddress(0xA0),
		TokenID:         big.NewInt(7),
		MinBidPrice:     big.NewInt(30),
		RedemptionPrice: big.NewInt(100),
		AuctionDuration: 86400,
		CreatedAt:       1000,
		ActiveBid:       &Bid{Bidder: newTestAddress(0x11), Price: big.NewInt(40)},
	}
	clone := listing.Clone()
	clone.RedemptionPrice.SetInt64(1)
	clone.ActiveBid.Price.SetInt64(1)

	if listing.RedemptionPrice.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("clone shares redemption price")
	}
	if listing.ActiveBid.Price.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("clone shares bid price")
	}
}

func TestSanitizeListing(t *testing.T) {
	base := func() *Listing {
		return &Listing{
			Seller:          newTestAddress(0x01),
			AssetRef:        newTestAddress(0xA0),
			TokenID:         big.NewInt(7),
			MinBidPrice:     big.NewInt(30),
			RedemptionPrice: big.NewInt(100),
			AuctionDuration: 86400,
			CreatedAt:       1000,
			Status:          ListingActive,
		}
	}

	if _, err := SanitizeListing(base()); err != nil {
		t.Fatalf("valid listing: %v", err)
	}

	inverted := base()
	inverted.RedemptionPrice = big.NewInt(30)
	if _, err := SanitizeListing(inverted); !errors.Is(err, ErrInvalidPriceRelation) {
		t.Fatalf("redemption == min bid: got %v", err)
	}

	lowBid := base()
	lowBid.ActiveBid = &Bid{Bidder: newTestAddress(0x11), Price: big.NewInt(10)}
	if _, err := SanitizeListing(lowBid); !errors.Is(err, ErrInvalidPriceRelation) {
		t.Fatalf("bid below minimum: got %v", err)
	}

	badStatus := base()
	badStatus.Status = ListingStatus(42)
	if _, err := SanitizeListing(badStatus); err == nil {
		t.Fatalf("invalid status must be rejected")
	}

	if _, err := SanitizeListing(nil); err == nil {
		t.Fatalf("nil listing must be rejected")
	}
}

func TestListingStatusPredicates(t *testing.T) {
	if !ListingActive.Valid() || ListingActive.Terminal() {
		t.Fatalf("active must be valid and non-terminal")
	}
	for _, status := range []ListingStatus{ListingSold, ListingAccepted, ListingFinalized, ListingFinalizedNoBid} {
		if !status.Valid() || !status.Terminal() {
			t.Fatalf("status %d must be valid and terminal", status)
		}
	}
	if ListingStatus(42).Valid() {
		t.Fatalf("out-of-range status must be invalid")
	}
}
