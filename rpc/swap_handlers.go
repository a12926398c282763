package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"swapmarket/core/types"
	"swapmarket/native/swap"
	"swapmarket/observability"
)

const (
	codeSwapInvalidParams = -32021
	codeSwapNotFound      = -32022
	codeSwapForbidden     = -32023
	codeSwapConflict      = -32024
	codeSwapInternal      = -32025
)

type createOrderParams struct {
	Caller        string `json:"caller"`
	AssetRegistry string `json:"assetRegistry"`
	AssetTokenID  string `json:"assetTokenId"`
}

type makeOfferParams struct {
	Caller     string   `json:"caller"`
	OrderID    uint64   `json:"orderId"`
	Registries []string `json:"registries"`
	TokenIDs   []string `json:"tokenIds"`
}

type acceptOfferParams struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
	OfferID uint64 `json:"offerId"`
}

type cancelOrderParams struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
}

type orderIDParams struct {
	OrderID uint64 `json:"orderId"`
}

type listEventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  *int   `json:"limit,omitempty"`
}

type orderCreateResult struct {
	OrderID uint64 `json:"orderId"`
}

type offerCreateResult struct {
	OfferID uint64 `json:"offerId"`
}

type ackResult struct {
	OK bool `json:"ok"`
}

type orderCountResult struct {
	Count uint64 `json:"count"`
}

type assetJSON struct {
	Registry string `json:"registry"`
	TokenID  string `json:"tokenId"`
}

type orderJSON struct {
	ID        uint64     `json:"id"`
	Owner     string     `json:"owner"`
	Asset     *assetJSON `json:"asset,omitempty"`
	Status    string     `json:"status"`
	CreatedAt int64      `json:"createdAt"`
}

type offerJSON struct {
	ID        uint64      `json:"id"`
	OrderID   uint64      `json:"orderId"`
	Proposer  string      `json:"proposer"`
	Bundle    []assetJSON `json:"bundle"`
	Seq       uint64      `json:"seq"`
	CreatedAt int64       `json:"createdAt"`
}

type eventResult struct {
	Sequence   int64             `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, req *RPCRequest) {
	var params createOrderParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.AssetRegistry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenID, err := parseTokenID(params.AssetTokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	started := time.Now()
	orderID, err := s.engine.CreateOrder(caller, swap.AssetRef{Registry: registry, TokenID: tokenID})
	observability.EngineMetrics().Observe("createOrder", err, started)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderCreateResult{OrderID: orderID})
}

func (s *Server) handleMakeOffer(w http.ResponseWriter, req *RPCRequest) {
	var params makeOfferParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	registries := make([][20]byte, len(params.Registries))
	for i, raw := range params.Registries {
		addr, parseErr := parseAddress(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", parseErr.Error())
			return
		}
		registries[i] = addr
	}
	tokenIDs := make([]*big.Int, len(params.TokenIDs))
	for i, raw := range params.TokenIDs {
		tokenID, parseErr := parseTokenID(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", parseErr.Error())
			return
		}
		tokenIDs[i] = tokenID
	}
	started := time.Now()
	offerID, err := s.engine.MakeOffer(caller, params.OrderID, registries, tokenIDs)
	observability.EngineMetrics().Observe("makeOffer", err, started)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, offerCreateResult{OfferID: offerID})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, req *RPCRequest) {
	var params acceptOfferParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	started := time.Now()
	err = s.engine.AcceptOffer(caller, params.OrderID, params.OfferID)
	observability.EngineMetrics().Observe("acceptOffer", err, started)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, req *RPCRequest) {
	var params cancelOrderParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	started := time.Now()
	err = s.engine.CancelOrder(caller, params.OrderID)
	observability.EngineMetrics().Observe("cancelOrder", err, started)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleGetOrderCount(w http.ResponseWriter, req *RPCRequest) {
	count, err := s.engine.OrderCount()
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderCountResult{Count: count})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, req *RPCRequest) {
	var params orderIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	order := s.engine.GetOrder(params.OrderID)
	writeResult(w, req.ID, formatOrderJSON(order))
}

func (s *Server) handleGetOffers(w http.ResponseWriter, req *RPCRequest) {
	var params orderIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	offers, err := s.engine.ListOffers(params.OrderID)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	results := make([]offerJSON, len(offers))
	for i, offer := range offers {
		results[i] = formatOfferJSON(offer)
	}
	writeResult(w, req.ID, results)
}

// handleListEvents returns recent swap events recorded by the engine. The
// optional prefix parameter narrows results to a namespace such as
// "swap.order.".
func (s *Server) handleListEvents(w http.ResponseWriter, req *RPCRequest) {
	var params listEventsParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	prefix := "swap."
	if trimmed := strings.TrimSpace(params.Prefix); trimmed != "" {
		prefix = trimmed
	}
	normalizedPrefix := strings.ToLower(prefix)
	results := make([]eventResult, 0)
	if s.recorder != nil {
		for _, evt := range s.recorder.List() {
			carrier, ok := evt.(interface{ Event() *types.Event })
			if !ok || carrier.Event() == nil {
				continue
			}
			payload := carrier.Event()
			if !strings.HasPrefix(strings.ToLower(payload.Type), normalizedPrefix) {
				continue
			}
			attrs := make(map[string]string, len(payload.Attributes))
			for k, v := range payload.Attributes {
				attrs[k] = v
			}
			results = append(results, eventResult{Type: payload.Type, Attributes: attrs})
		}
	}
	if params.Limit != nil {
		limit := *params.Limit
		if limit < 0 {
			limit = 0
		}
		if limit < len(results) {
			results = results[:limit]
		}
	}
	for i := range results {
		results[i].Sequence = int64(i + 1)
	}
	writeResult(w, req.ID, results)
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func writeSwapError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeSwapInternal
	message := "internal_error"
	switch {
	case errors.Is(err, swap.ErrNotFound):
		status = http.StatusNotFound
		code = codeSwapNotFound
		message = "not_found"
	case errors.Is(err, swap.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeSwapForbidden
		message = "forbidden"
	case errors.Is(err, swap.ErrInvalidInput), errors.Is(err, swap.ErrNotApproved):
		status = http.StatusBadRequest
		code = codeSwapInvalidParams
		message = "invalid_params"
	case errors.Is(err, swap.ErrNotActive), errors.Is(err, swap.ErrOwnershipMismatch),
		errors.Is(err, swap.ErrCustodyViolation), errors.Is(err, swap.ErrReentrantCall):
		status = http.StatusConflict
		code = codeSwapConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, err.Error())
}

func formatOrderJSON(order *swap.Order) orderJSON {
	if order == nil {
		return orderJSON{Status: orderStatusString(swap.OrderUnknown)}
	}
	result := orderJSON{
		ID:        order.ID,
		Owner:     formatAddress(order.Owner),
		Status:    orderStatusString(order.Status),
		CreatedAt: order.CreatedAt,
	}
	if order.Status != swap.OrderUnknown {
		result.Asset = &assetJSON{
			Registry: formatAddress(order.Asset.Registry),
			TokenID:  order.Asset.TokenID.String(),
		}
	}
	return result
}

func formatOfferJSON(offer *swap.Offer) offerJSON {
	result := offerJSON{
		ID:        offer.ID,
		OrderID:   offer.OrderID,
		Proposer:  formatAddress(offer.Proposer),
		Seq:       offer.Seq,
		CreatedAt: offer.CreatedAt,
	}
	result.Bundle = make([]assetJSON, len(offer.Bundle))
	for i, asset := range offer.Bundle {
		result.Bundle[i] = assetJSON{
			Registry: formatAddress(asset.Registry),
			TokenID:  asset.TokenID.String(),
		}
	}
	return result
}

func orderStatusString(status swap.OrderStatus) string {
	switch status {
	case swap.OrderActive:
		return "active"
	case swap.OrderSettled:
		return "settled"
	case swap.OrderCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseAddress(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("address required")
	}
	cleaned := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(cleaned) != 40 {
		return out, fmt.Errorf("address must be 20 bytes")
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded)
	return out, nil
}

func parseTokenID(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("token id required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token id %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("token id must be non-negative")
	}
	return value, nil
}
