package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"swapmarket/native/swap"
	"swapmarket/storage"
)

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testOrder(id uint64) *swap.Order {
	return &swap.Order{
		ID:        id,
		Owner:     testAddress(0x01),
		Asset:     swap.AssetRef{Registry: testAddress(0xA1), TokenID: big.NewInt(int64(id))},
		Status:    swap.OrderActive,
		CreatedAt: 1000,
	}
}

func testOffer(id, orderID, seq uint64) *swap.Offer {
	return &swap.Offer{
		ID:       id,
		OrderID:  orderID,
		Proposer: testAddress(0x02),
		Bundle: []swap.AssetRef{
			{Registry: testAddress(0xA2), TokenID: big.NewInt(int64(100 + id))},
		},
		Seq:       seq,
		CreatedAt: 1000,
	}
}

func TestManagerCountersStartAtOne(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	count, err := manager.OrderCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)

	first, err := manager.OrderNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)

	second, err := manager.OrderNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), second)

	count, err = manager.OrderCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	// Offer identifiers draw from their own counter.
	offerID, err := manager.OfferNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), offerID)
}

func TestManagerOrderRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	_, ok := manager.OrderGet(1)
	require.False(t, ok)

	order := testOrder(1)
	require.NoError(t, manager.OrderPut(order))

	loaded, ok := manager.OrderGet(1)
	require.True(t, ok)
	require.Equal(t, order.ID, loaded.ID)
	require.Equal(t, order.Owner, loaded.Owner)
	require.Equal(t, order.Asset.Registry, loaded.Asset.Registry)
	require.Zero(t, order.Asset.TokenID.Cmp(loaded.Asset.TokenID))
	require.Equal(t, order.Status, loaded.Status)
	require.Equal(t, order.CreatedAt, loaded.CreatedAt)
}

func TestManagerOrderPutRejectsInvalid(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.Error(t, manager.OrderPut(nil))
	require.Error(t, manager.OrderPut(&swap.Order{ID: 0}))
}

func TestManagerOrderSetStatus(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	require.Error(t, manager.OrderSetStatus(1, swap.OrderCanceled))

	require.NoError(t, manager.OrderPut(testOrder(1)))
	require.NoError(t, manager.OrderSetStatus(1, swap.OrderSettled))

	loaded, ok := manager.OrderGet(1)
	require.True(t, ok)
	require.Equal(t, swap.OrderSettled, loaded.Status)

	// Terminal orders never transition again.
	require.NoError(t, manager.OrderSetStatus(1, swap.OrderCanceled))
	loaded, _ = manager.OrderGet(1)
	require.Equal(t, swap.OrderSettled, loaded.Status)

	require.Error(t, manager.OrderSetStatus(1, swap.OrderStatus(99)))
}

func TestManagerOfferIndex(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	count, err := manager.OfferCountFor(1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)

	offers, err := manager.OfferListFor(1)
	require.NoError(t, err)
	require.Empty(t, offers)

	require.NoError(t, manager.OfferPut(testOffer(1, 1, 1)))
	require.NoError(t, manager.OfferPut(testOffer(2, 1, 2)))
	require.NoError(t, manager.OfferPut(testOffer(3, 2, 1)))

	count, err = manager.OfferCountFor(1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	offers, err = manager.OfferListFor(1)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	require.Equal(t, uint64(1), offers[0].ID)
	require.Equal(t, uint64(2), offers[1].ID)
	require.Equal(t, uint64(1), offers[0].Seq)
	require.Equal(t, uint64(2), offers[1].Seq)

	// Re-putting the same offer does not duplicate the index entry.
	require.NoError(t, manager.OfferPut(testOffer(2, 1, 2)))
	count, err = manager.OfferCountFor(1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	loaded, ok := manager.OfferGet(3)
	require.True(t, ok)
	require.Equal(t, uint64(2), loaded.OrderID)
	require.Len(t, loaded.Bundle, 1)
	require.Zero(t, loaded.Bundle[0].TokenID.Cmp(big.NewInt(103)))
}

func TestManagerOfferGetAbsent(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	_, ok := manager.OfferGet(42)
	require.False(t, ok)
}
