package swap

import (
	"encoding/hex"
	"strconv"
	"strings"

	"swapmarket/core/types"
)

const (
	EventTypeOrderCreated  = "swap.order.created"
	EventTypeOfferMade     = "swap.order.offer_made"
	EventTypeOfferAccepted = "swap.order.offer_accepted"
	EventTypeOrderCanceled = "swap.order.canceled"
)

// NewOrderCreatedEvent returns the canonical event payload for a newly listed
// order.
func NewOrderCreatedEvent(o *Order) *types.Event {
	attrs := orderAttributes(o)
	return &types.Event{Type: EventTypeOrderCreated, Attributes: attrs}
}

// NewOfferMadeEvent returns the canonical event payload emitted when a bundle
// is proposed against an active order.
func NewOfferMadeEvent(o *Offer) *types.Event {
	attrs := offerAttributes(o)
	return &types.Event{Type: EventTypeOfferMade, Attributes: attrs}
}

// NewOfferAcceptedEvent returns the canonical event payload emitted when the
// order owner settles against an offer.
func NewOfferAcceptedEvent(order *Order, offer *Offer) *types.Event {
	attrs := make(map[string]string)
	if order != nil {
		attrs["orderId"] = strconv.FormatUint(order.ID, 10)
		attrs["owner"] = formatAddress(order.Owner)
	}
	if offer != nil {
		attrs["offerId"] = strconv.FormatUint(offer.ID, 10)
		attrs["proposer"] = formatAddress(offer.Proposer)
	}
	return &types.Event{Type: EventTypeOfferAccepted, Attributes: attrs}
}

// NewOrderCanceledEvent returns the canonical event payload emitted when the
// owner withdraws a listing.
func NewOrderCanceledEvent(o *Order) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["orderId"] = strconv.FormatUint(o.ID, 10)
		attrs["owner"] = formatAddress(o.Owner)
	}
	return &types.Event{Type: EventTypeOrderCanceled, Attributes: attrs}
}

func orderAttributes(o *Order) map[string]string {
	attrs := make(map[string]string)
	if o == nil {
		return attrs
	}
	sanitized, err := SanitizeOrder(o)
	if err != nil {
		return attrs
	}
	attrs["orderId"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["owner"] = formatAddress(sanitized.Owner)
	attrs["assetRegistry"] = formatAddress(sanitized.Asset.Registry)
	attrs["assetTokenId"] = sanitized.Asset.TokenID.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	return attrs
}

func offerAttributes(o *Offer) map[string]string {
	attrs := make(map[string]string)
	if o == nil {
		return attrs
	}
	sanitized, err := SanitizeOffer(o)
	if err != nil {
		return attrs
	}
	attrs["orderId"] = strconv.FormatUint(sanitized.OrderID, 10)
	attrs["offerId"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["proposer"] = formatAddress(sanitized.Proposer)
	attrs["bundle"] = formatBundle(sanitized.Bundle)
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	return attrs
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatBundle(bundle []AssetRef) string {
	parts := make([]string, 0, len(bundle))
	for _, asset := range bundle {
		parts = append(parts, formatAddress(asset.Registry)+":"+asset.TokenID.String())
	}
	return strings.Join(parts, ",")
}
