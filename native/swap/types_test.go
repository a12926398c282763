package swap

import (
	"math/big"
	"testing"
)

func TestModuleAddressDeterministic(t *testing.T) {
	first := ModuleAddress()
	second := ModuleAddress()
	if first != second {
		t.Fatalf("custody address must be deterministic")
	}
	if first == ([20]byte{}) {
		t.Fatalf("custody address must be non-zero")
	}
}

func TestOrderStatusPredicates(t *testing.T) {
	if OrderUnknown.Valid() {
		t.Fatalf("unknown status must not validate")
	}
	if !OrderActive.Valid() || !OrderSettled.Valid() || !OrderCanceled.Valid() {
		t.Fatalf("lifecycle statuses must validate")
	}
	if OrderActive.Terminal() {
		t.Fatalf("active is not terminal")
	}
	if !OrderSettled.Terminal() || !OrderCanceled.Terminal() {
		t.Fatalf("settled and canceled are terminal")
	}
}

func TestSanitizeAssetRef(t *testing.T) {
	if _, err := SanitizeAssetRef(AssetRef{TokenID: big.NewInt(1)}); err == nil {
		t.Fatalf("zero registry must be rejected")
	}
	if _, err := SanitizeAssetRef(AssetRef{Registry: newTestAddress(0xA1), TokenID: big.NewInt(-1)}); err == nil {
		t.Fatalf("negative token id must be rejected")
	}
	sanitized, err := SanitizeAssetRef(AssetRef{Registry: newTestAddress(0xA1)})
	if err != nil {
		t.Fatalf("nil token id should default: %v", err)
	}
	if sanitized.TokenID == nil || sanitized.TokenID.Sign() != 0 {
		t.Fatalf("nil token id must normalise to zero")
	}
}

func TestSanitizeOrderClones(t *testing.T) {
	original := &Order{
		ID:     1,
		Owner:  newTestAddress(0x01),
		Asset:  AssetRef{Registry: newTestAddress(0xA1), TokenID: big.NewInt(5)},
		Status: OrderActive,
	}
	sanitized, err := SanitizeOrder(original)
	if err != nil {
		t.Fatalf("SanitizeOrder error: %v", err)
	}
	sanitized.Asset.TokenID.SetInt64(99)
	if original.Asset.TokenID.Int64() != 5 {
		t.Fatalf("sanitize must not share token id with the original")
	}

	if _, err := SanitizeOrder(nil); err == nil {
		t.Fatalf("nil order must be rejected")
	}
	if _, err := SanitizeOrder(&Order{ID: 0, Owner: newTestAddress(0x01), Asset: original.Asset, Status: OrderActive}); err == nil {
		t.Fatalf("zero order id must be rejected")
	}
	if _, err := SanitizeOrder(&Order{ID: 2, Owner: newTestAddress(0x01), Asset: original.Asset, Status: OrderUnknown}); err == nil {
		t.Fatalf("unknown status must be rejected")
	}
}

func TestSanitizeOffer(t *testing.T) {
	bundle := []AssetRef{{Registry: newTestAddress(0xA2), TokenID: big.NewInt(7)}}
	valid := &Offer{ID: 1, OrderID: 1, Proposer: newTestAddress(0x02), Bundle: bundle, Seq: 1}
	if _, err := SanitizeOffer(valid); err != nil {
		t.Fatalf("SanitizeOffer error: %v", err)
	}
	if _, err := SanitizeOffer(&Offer{ID: 1, OrderID: 1, Proposer: newTestAddress(0x02)}); err == nil {
		t.Fatalf("empty bundle must be rejected")
	}
	if _, err := SanitizeOffer(&Offer{ID: 1, Proposer: newTestAddress(0x02), Bundle: bundle}); err == nil {
		t.Fatalf("zero order id must be rejected")
	}
	if _, err := SanitizeOffer(&Offer{ID: 1, OrderID: 1, Bundle: bundle}); err == nil {
		t.Fatalf("zero proposer must be rejected")
	}
}

func TestOfferCloneIsDeep(t *testing.T) {
	offer := &Offer{
		ID:       3,
		OrderID:  1,
		Proposer: newTestAddress(0x02),
		Bundle:   []AssetRef{{Registry: newTestAddress(0xA2), TokenID: big.NewInt(7)}},
		Seq:      1,
	}
	clone := offer.Clone()
	clone.Bundle[0].TokenID.SetInt64(42)
	if offer.Bundle[0].TokenID.Int64() != 7 {
		t.Fatalf("clone must not share bundle token ids")
	}
}
