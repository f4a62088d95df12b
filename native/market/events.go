package market

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeListingCreated         = "market.listing.created"
	EventTypeOfferCreated           = "market.offer.created"
	EventTypeListingPurchased       = "market.listing.purchased"
	EventTypeOfferAccepted          = "market.offer.accepted"
	EventTypeListingFinishedNoOffer = "market.listing.finished_no_offer"
)

// NewListingCreatedEvent returns the canonical event payload for a freshly
// listed token.
func NewListingCreatedEvent(l *Listing) *types.Event {
	attrs := listingAttributes(l)
	return &types.Event{Type: EventTypeListingCreated, Attributes: attrs}
}

// NewOfferCreatedEvent returns the canonical event payload emitted when a bid
// is accepted into escrow.
func NewOfferCreatedEvent(l *Listing, bid *Bid) *types.Event {
	attrs := listingAttributes(l)
	if bid != nil {
		attrs["buyer"] = hex.EncodeToString(bid.Bidder[:])
		attrs["price"] = cloneBigInt(bid.Price).String()
	}
	return &types.Event{Type: EventTypeOfferCreated, Attributes: attrs}
}

// NewListingPurchasedEvent returns the canonical event payload for an outright
// redemption-price purchase.
func NewListingPurchasedEvent(l *Listing, buyer [20]byte) *types.Event {
	attrs := listingAttributes(l)
	attrs["buyer"] = hex.EncodeToString(buyer[:])
	return &types.Event{Type: EventTypeListingPurchased, Attributes: attrs}
}

// NewOfferAcceptedEvent returns the canonical event payload for a settled bid,
// whether accepted by the seller or through finalization.
func NewOfferAcceptedEvent(l *Listing, bid *Bid) *types.Event {
	attrs := listingAttributes(l)
	if bid != nil {
		attrs["buyer"] = hex.EncodeToString(bid.Bidder[:])
		attrs["price"] = cloneBigInt(bid.Price).String()
	}
	return &types.Event{Type: EventTypeOfferAccepted, Attributes: attrs}
}

// NewListingFinishedNoOfferEvent returns the canonical event payload emitted
// when an expired auction closes without a standing bid.
func NewListingFinishedNoOfferEvent(l *Listing) *types.Event {
	attrs := listingAttributes(l)
	return &types.Event{Type: EventTypeListingFinishedNoOffer, Attributes: attrs}
}

func listingAttributes(l *Listing) map[string]string {
	attrs := make(map[string]string)
	if l == nil {
		return attrs
	}
	attrs["listingId"] = hex.EncodeToString(l.ID[:])
	attrs["seller"] = hex.EncodeToString(l.Seller[:])
	attrs["assetContract"] = hex.EncodeToString(l.AssetRef[:])
	attrs["tokenId"] = cloneBigInt(l.TokenID).String()
	attrs["minBidPrice"] = cloneBigInt(l.MinBidPrice).String()
	attrs["redemptionPrice"] = cloneBigInt(l.RedemptionPrice).String()
	attrs["auctionDuration"] = strconv.FormatUint(l.AuctionDuration, 10)
	attrs["createdAt"] = strconv.FormatInt(l.CreatedAt, 10)
	return attrs
}
