package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"nftmarket/native/market"
)

const (
	codeMarketInvalidParams = -32041
	codeMarketNotFound      = -32042
	codeMarketForbidden     = -32043
	codeMarketConflict      = -32044
	codeMarketInternal      = -32045
)

type marketListingParams struct {
	Caller          string `json:"caller"`
	AssetContract   string `json:"assetContract"`
	TokenID         string `json:"tokenId"`
	MinBidPrice     string `json:"minBidPrice"`
	RedemptionPrice string `json:"redemptionPrice"`
	AuctionDuration uint64 `json:"auctionDuration"`
}

type marketOfferParams struct {
	Caller        string `json:"caller"`
	AssetContract string `json:"assetContract"`
	TokenID       string `json:"tokenId"`
	Price         string `json:"price"`
}

type marketPairParams struct {
	Caller        string `json:"caller"`
	AssetContract string `json:"assetContract"`
	TokenID       string `json:"tokenId"`
}

type marketGetParams struct {
	ID string `json:"id"`
}

type marketWalletParams struct {
	Caller string `json:"caller"`
	Wallet string `json:"wallet"`
}

type marketPercentParams struct {
	Caller  string `json:"caller"`
	Percent uint32 `json:"percent"`
}

type bidJSON struct {
	Bidder string `json:"bidder"`
	Price  string `json:"price"`
}

type listingJSON struct {
	ID              string   `json:"id"`
	Seller          string   `json:"seller"`
	AssetContract   string   `json:"assetContract"`
	TokenID         string   `json:"tokenId"`
	MinBidPrice     string   `json:"minBidPrice"`
	RedemptionPrice string   `json:"redemptionPrice"`
	AuctionDuration uint64   `json:"auctionDuration"`
	CreatedAt       int64    `json:"createdAt"`
	EndTime         int64    `json:"endTime"`
	Status          string   `json:"status"`
	Bid             *bidJSON `json:"bid,omitempty"`
}

func listingToJSON(l *market.Listing) listingJSON {
	out := listingJSON{
		ID:              "0x" + hex.EncodeToString(l.ID[:]),
		Seller:          "0x" + hex.EncodeToString(l.Seller[:]),
		AssetContract:   "0x" + hex.EncodeToString(l.AssetRef[:]),
		TokenID:         l.TokenID.String(),
		MinBidPrice:     l.MinBidPrice.String(),
		RedemptionPrice: l.RedemptionPrice.String(),
		AuctionDuration: l.AuctionDuration,
		CreatedAt:       l.CreatedAt,
		EndTime:         l.EndTime(),
		Status:          formatListingStatus(l.Status),
	}
	if l.ActiveBid != nil {
		out.Bid = &bidJSON{
			Bidder: "0x" + hex.EncodeToString(l.ActiveBid.Bidder[:]),
			Price:  l.ActiveBid.Price.String(),
		}
	}
	return out
}

func formatListingStatus(s market.ListingStatus) string {
	switch s {
	case market.ListingActive:
		return "active"
	case market.ListingSold:
		return "sold"
	case market.ListingAccepted:
		return "accepted"
	case market.ListingFinalized:
		return "finalized"
	case market.ListingFinalizedNoBid:
		return "finalized_no_bid"
	default:
		return fmt.Sprintf("0x%02x", uint8(s))
	}
}

func parseHexAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseListingID(value string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("invalid listing id: %w", err)
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("listing id must be 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return amount, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// writeMarketError maps engine sentinels onto the market RPC error codes.
func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, market.ErrListingNotFound):
		writeError(w, http.StatusNotFound, id, codeMarketNotFound, "not_found", err.Error())
	case errors.Is(err, market.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, id, codeMarketForbidden, "forbidden", err.Error())
	case errors.Is(err, market.ErrListingExists),
		errors.Is(err, market.ErrAlreadySettled),
		errors.Is(err, market.ErrOfferNotHigher),
		errors.Is(err, market.ErrNoActiveOffer),
		errors.Is(err, market.ErrAuctionRunning),
		errors.Is(err, market.ErrSellerNotOwner),
		errors.Is(err, market.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, id, codeMarketConflict, "conflict", err.Error())
	case errors.Is(err, market.ErrInvalidPriceRelation),
		errors.Is(err, market.ErrInvalidDuration),
		errors.Is(err, market.ErrInvalidCommissionPercent),
		errors.Is(err, market.ErrApprovalMissing):
		writeError(w, http.StatusBadRequest, id, codeMarketInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeMarketInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleMarketCreateListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketListingParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseHexAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseHexAddress(params.AssetContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenID, err := parseAmount(params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	minBid, err := parseAmount(params.MinBidPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	redemption, err := parseAmount(params.RedemptionPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	listing, err := s.engine.CreateListing(market.Context{Caller: caller}, asset, tokenID, minBid, redemption, params.AuctionDuration)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketMakeOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketOfferParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseHexAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseHexAddress(params.AssetContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenID, err := parseAmount(params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	listing, err := s.engine.MakeOffer(market.Context{Caller: caller}, asset, tokenID, price)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketBuyListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handlePairCall(w, r, req, func(ctx market.Context, asset [20]byte, tokenID *big.Int) error {
		return s.engine.BuyListing(ctx, asset, tokenID)
	})
}

func (s *Server) handleMarketAcceptOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handlePairCall(w, r, req, func(ctx market.Context, asset [20]byte, tokenID *big.Int) error {
		return s.engine.AcceptOffer(ctx, asset, tokenID)
	})
}

func (s *Server) handleMarketFinalizeListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handlePairCall(w, r, req, func(ctx market.Context, asset [20]byte, tokenID *big.Int) error {
		return s.engine.FinalizeListing(ctx, asset, tokenID)
	})
}

// handlePairCall covers the settlement methods that share the
// caller/contract/token parameter shape and return a plain ok result.
func (s *Server) handlePairCall(w http.ResponseWriter, r *http.Request, req *RPCRequest, call func(market.Context, [20]byte, *big.Int) error) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketPairParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseHexAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseHexAddress(params.AssetContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenID, err := parseAmount(params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	err = call(market.Context{Caller: caller}, asset, tokenID)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, req *RPCRequest) {
	var params marketGetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseListingID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.engine.GetListing(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketSetCommissionWallet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketWalletParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseHexAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	wallet, err := parseHexAddress(params.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.SetCommissionWallet(market.Context{Caller: caller}, wallet)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketSetCommissionPercent(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketPercentParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseHexAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.SetCommissionPercent(market.Context{Caller: caller}, params.Percent)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}
