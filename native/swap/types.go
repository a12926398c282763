package swap

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// OrderStatus represents the lifecycle states of a listing. Active orders hold
// their listed asset in custody; both terminal states are final.
type OrderStatus uint8

const (
	OrderUnknown OrderStatus = iota
	OrderActive
	OrderSettled
	OrderCanceled
)

// AssetRef identifies a single asset by its registry address and token
// identifier. Ownership truth lives in the external registry; the reference
// itself is immutable once recorded.
type AssetRef struct {
	Registry [20]byte
	TokenID  *big.Int
}

// Order captures a listing of one custodial asset. The owner and listed asset
// are immutable after creation; only the status transitions, exactly once,
// from Active to a terminal state.
type Order struct {
	ID        uint64
	Owner     [20]byte
	Asset     AssetRef
	Status    OrderStatus
	CreatedAt int64
}

// Offer captures a bundle proposed against an active order. Offers are
// immutable after creation and never deleted; they become permanently
// non-acceptable once their parent order leaves the Active state. The
// identifier is drawn from a single counter shared across all orders so an
// offer id can never alias an offer under a different order; Seq is the
// offer's position within its parent order.
type Offer struct {
	ID        uint64
	OrderID   uint64
	Proposer  [20]byte
	Bundle    []AssetRef
	Seq       uint64
	CreatedAt int64
}

// ModuleAddress derives the deterministic custody address holding listed
// assets on behalf of order owners.
func ModuleAddress() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("swapmarket/custody"))
	copy(addr[:], hash[12:])
	return addr
}

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderActive, OrderSettled, OrderCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderSettled || s == OrderCanceled
}

// Clone returns a deep copy of the asset reference.
func (a AssetRef) Clone() AssetRef {
	clone := a
	if a.TokenID != nil {
		clone.TokenID = new(big.Int).Set(a.TokenID)
	} else {
		clone.TokenID = big.NewInt(0)
	}
	return clone
}

// Clone returns a deep copy of the order so callers can safely mutate the
// result without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Asset = o.Asset.Clone()
	return &clone
}

// Clone returns a deep copy of the offer including its bundle.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Bundle = make([]AssetRef, len(o.Bundle))
	for i := range o.Bundle {
		clone.Bundle[i] = o.Bundle[i].Clone()
	}
	return &clone
}

// SanitizeAssetRef validates the supplied asset reference and returns a deep
// copy with a non-nil token id.
func SanitizeAssetRef(a AssetRef) (AssetRef, error) {
	clone := a.Clone()
	if clone.Registry == ([20]byte{}) {
		return AssetRef{}, fmt.Errorf("swap: asset registry required")
	}
	if clone.TokenID.Sign() < 0 {
		return AssetRef{}, fmt.Errorf("swap: token id must be non-negative")
	}
	return clone, nil
}

// SanitizeOrder validates and normalises the supplied order definition,
// returning a cloned instance. The function does not mutate the original
// value.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("swap: nil order")
	}
	clone := o.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("swap: order id required")
	}
	if clone.Owner == ([20]byte{}) {
		return nil, fmt.Errorf("swap: order owner required")
	}
	asset, err := SanitizeAssetRef(clone.Asset)
	if err != nil {
		return nil, err
	}
	clone.Asset = asset
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("swap: invalid order status %d", clone.Status)
	}
	return clone, nil
}

// SanitizeOffer validates and normalises the supplied offer definition,
// returning a cloned instance with a non-empty, fully validated bundle.
func SanitizeOffer(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("swap: nil offer")
	}
	clone := o.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("swap: offer id required")
	}
	if clone.OrderID == 0 {
		return nil, fmt.Errorf("swap: offer order id required")
	}
	if clone.Proposer == ([20]byte{}) {
		return nil, fmt.Errorf("swap: offer proposer required")
	}
	if len(clone.Bundle) == 0 {
		return nil, fmt.Errorf("swap: offer bundle must not be empty")
	}
	for i, asset := range clone.Bundle {
		sanitized, err := SanitizeAssetRef(asset)
		if err != nil {
			return nil, err
		}
		clone.Bundle[i] = sanitized
	}
	return clone, nil
}
