package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"swapmarket/native/swap"
	"swapmarket/storage"
)

// Manager persists orders and offers in a key-value backend. It owns the
// sequence generators for both stores: the order counter and the single
// global offer counter, plus the per-order offer index used to bound
// enumeration. No lifecycle validation lives here; it is pure storage.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	orderSeqKey  = ethcrypto.Keccak256([]byte("swap/orders/seq"))
	offerSeqKey  = ethcrypto.Keccak256([]byte("swap/offers/seq"))
	orderPrefix  = []byte("swap/order/")
	offerPrefix  = []byte("swap/offer/")
	offersPrefix = []byte("swap/order-offers/")
)

func idKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return ethcrypto.Keccak256(buf)
}

type storedAsset struct {
	Registry [20]byte
	TokenID  *big.Int
}

type storedOrder struct {
	ID        uint64
	Owner     [20]byte
	Asset     storedAsset
	Status    uint8
	CreatedAt uint64
}

type storedOffer struct {
	ID        uint64
	OrderID   uint64
	Proposer  [20]byte
	Bundle    []storedAsset
	Seq       uint64
	CreatedAt uint64
}

func (m *Manager) loadCounter(key []byte) (uint64, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (m *Manager) bumpCounter(key []byte) (uint64, error) {
	current, err := m.loadCounter(key)
	if err != nil {
		return 0, err
	}
	next := current + 1
	encoded, err := rlp.EncodeToBytes(next)
	if err != nil {
		return 0, err
	}
	if err := m.db.Put(key, encoded); err != nil {
		return 0, err
	}
	return next, nil
}

// OrderNextID allocates the next order identifier. Identifiers start at 1,
// increase monotonically and are never reused, even when a later write fails.
func (m *Manager) OrderNextID() (uint64, error) {
	return m.bumpCounter(orderSeqKey)
}

// OrderCount returns the number of orders ever created.
func (m *Manager) OrderCount() (uint64, error) {
	return m.loadCounter(orderSeqKey)
}

// OrderPut sanitizes and persists the order record.
func (m *Manager) OrderPut(order *swap.Order) error {
	sanitized, err := swap.SanitizeOrder(order)
	if err != nil {
		return err
	}
	stored := storedOrder{
		ID:        sanitized.ID,
		Owner:     sanitized.Owner,
		Asset:     storedAsset{Registry: sanitized.Asset.Registry, TokenID: sanitized.Asset.TokenID},
		Status:    uint8(sanitized.Status),
		CreatedAt: uint64(sanitized.CreatedAt),
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.db.Put(idKey(orderPrefix, sanitized.ID), encoded)
}

// OrderGet returns the stored order, reporting absence via the boolean.
func (m *Manager) OrderGet(id uint64) (*swap.Order, bool) {
	data, err := m.db.Get(idKey(orderPrefix, id))
	if err != nil {
		return nil, false
	}
	var stored storedOrder
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false
	}
	return &swap.Order{
		ID:        stored.ID,
		Owner:     stored.Owner,
		Asset:     swap.AssetRef{Registry: stored.Asset.Registry, TokenID: stored.Asset.TokenID},
		Status:    swap.OrderStatus(stored.Status),
		CreatedAt: int64(stored.CreatedAt),
	}, true
}

// OrderSetStatus transitions the stored order to the supplied status. The
// write is an idempotent no-op when the order already left the active state.
func (m *Manager) OrderSetStatus(id uint64, status swap.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("state: invalid order status %d", status)
	}
	order, ok := m.OrderGet(id)
	if !ok {
		return fmt.Errorf("state: order %d not found", id)
	}
	if order.Status.Terminal() {
		return nil
	}
	order.Status = status
	return m.OrderPut(order)
}

// OfferNextID allocates the next offer identifier from the counter shared
// across all orders, so offers are never aliased across unrelated orders.
func (m *Manager) OfferNextID() (uint64, error) {
	return m.bumpCounter(offerSeqKey)
}

// OfferPut sanitizes and persists the offer record and appends it to its
// parent order's index.
func (m *Manager) OfferPut(offer *swap.Offer) error {
	sanitized, err := swap.SanitizeOffer(offer)
	if err != nil {
		return err
	}
	bundle := make([]storedAsset, len(sanitized.Bundle))
	for i, asset := range sanitized.Bundle {
		bundle[i] = storedAsset{Registry: asset.Registry, TokenID: asset.TokenID}
	}
	stored := storedOffer{
		ID:        sanitized.ID,
		OrderID:   sanitized.OrderID,
		Proposer:  sanitized.Proposer,
		Bundle:    bundle,
		Seq:       sanitized.Seq,
		CreatedAt: uint64(sanitized.CreatedAt),
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	if err := m.db.Put(idKey(offerPrefix, sanitized.ID), encoded); err != nil {
		return err
	}
	index, err := m.loadOfferIndex(sanitized.OrderID)
	if err != nil {
		return err
	}
	for _, existing := range index {
		if existing == sanitized.ID {
			return nil
		}
	}
	index = append(index, sanitized.ID)
	return m.writeOfferIndex(sanitized.OrderID, index)
}

// OfferGet returns the stored offer, reporting absence via the boolean.
func (m *Manager) OfferGet(id uint64) (*swap.Offer, bool) {
	data, err := m.db.Get(idKey(offerPrefix, id))
	if err != nil {
		return nil, false
	}
	var stored storedOffer
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false
	}
	bundle := make([]swap.AssetRef, len(stored.Bundle))
	for i, asset := range stored.Bundle {
		bundle[i] = swap.AssetRef{Registry: asset.Registry, TokenID: asset.TokenID}
	}
	return &swap.Offer{
		ID:        stored.ID,
		OrderID:   stored.OrderID,
		Proposer:  stored.Proposer,
		Bundle:    bundle,
		Seq:       stored.Seq,
		CreatedAt: int64(stored.CreatedAt),
	}, true
}

// OfferCountFor returns the number of offers recorded against the order.
func (m *Manager) OfferCountFor(orderID uint64) (uint64, error) {
	index, err := m.loadOfferIndex(orderID)
	if err != nil {
		return 0, err
	}
	return uint64(len(index)), nil
}

// OfferListFor returns every offer recorded against the order in creation
// order. Absent orders yield an empty list.
func (m *Manager) OfferListFor(orderID uint64) ([]*swap.Offer, error) {
	index, err := m.loadOfferIndex(orderID)
	if err != nil {
		return nil, err
	}
	offers := make([]*swap.Offer, 0, len(index))
	for _, id := range index {
		offer, ok := m.OfferGet(id)
		if !ok {
			return nil, fmt.Errorf("state: indexed offer %d not found", id)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func (m *Manager) loadOfferIndex(orderID uint64) ([]uint64, error) {
	data, err := m.db.Get(idKey(offersPrefix, orderID))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return []uint64{}, nil
	}
	if err != nil {
		return nil, err
	}
	var index []uint64
	if err := rlp.DecodeBytes(data, &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (m *Manager) writeOfferIndex(orderID uint64, index []uint64) error {
	encoded, err := rlp.EncodeToBytes(index)
	if err != nil {
		return err
	}
	return m.db.Put(idKey(offersPrefix, orderID), encoded)
}
