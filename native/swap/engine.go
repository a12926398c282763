package swap

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"swapmarket/core/events"
	"swapmarket/core/types"
)

var (
	errNilState      = errors.New("swap engine: state not configured")
	errNilRegistries = errors.New("swap engine: registry resolver not configured")
)

// TokenRegistry is the capability implemented by each external asset-class
// registry. The registry is the sole source of truth for ownership outside of
// engine custody; Transfer fails when from is not the current owner.
type TokenRegistry interface {
	OwnerOf(tokenID *big.Int) ([20]byte, error)
	Transfer(from, to [20]byte, tokenID *big.Int) error
	IsApprovedForAll(owner, operator [20]byte) (bool, error)
	ApprovedFor(tokenID *big.Int) ([20]byte, error)
}

// RegistryResolver maps a registry address to its TokenRegistry capability.
type RegistryResolver interface {
	Registry(addr [20]byte) (TokenRegistry, error)
}

type engineState interface {
	OrderNextID() (uint64, error)
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool)
	OrderSetStatus(id uint64, status OrderStatus) error
	OrderCount() (uint64, error)
	OfferNextID() (uint64, error)
	OfferPut(*Offer) error
	OfferGet(id uint64) (*Offer, bool)
	OfferCountFor(orderID uint64) (uint64, error)
	OfferListFor(orderID uint64) ([]*Offer, error)
}

type swapEvent struct {
	evt *types.Event
}

func (e swapEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e swapEvent) Event() *types.Event { return e.evt }

// Engine wires the order/offer lifecycle with external asset registries and
// event emitters. It is the sole mutator of both stores and the sole caller
// of the registries: an active order implies the engine holds custody of its
// listed asset, and custody leaves exactly once, either to the winning
// proposer or back to the owner.
type Engine struct {
	state      engineState
	registries RegistryResolver
	emitter    events.Emitter
	custody    [20]byte
	nowFn      func() int64
	inFlight   atomic.Bool
}

// NewEngine creates a swap engine with a no-op emitter and the deterministic
// module custody address. Callers can override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		custody: ModuleAddress(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistries configures the resolver used to reach external registries.
func (e *Engine) SetRegistries(r RegistryResolver) { e.registries = r }

// CustodyAddress returns the address holding listed assets in custody.
func (e *Engine) CustodyAddress() [20]byte { return e.custody }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(swapEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// begin claims the single in-flight slot shared by every mutating entry
// point. A registry callback re-entering the engine mid-operation trips the
// guard instead of executing.
func (e *Engine) begin() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registries == nil {
		return errNilRegistries
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) end() { e.inFlight.Store(false) }

func (e *Engine) resolveRegistry(addr [20]byte) (TokenRegistry, error) {
	reg, err := e.registries.Registry(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown registry %s", ErrInvalidInput, formatAddress(addr))
	}
	return reg, nil
}

// transferLog records executed registry transfers within one operation so a
// later failure can unwind them in reverse order. Store writes happen only
// after all registry calls succeed, so the stores themselves never need
// rollback.
type transferLog struct {
	entries []transferEntry
}

type transferEntry struct {
	registry TokenRegistry
	from     [20]byte
	to       [20]byte
	tokenID  *big.Int
}

func (l *transferLog) record(reg TokenRegistry, from, to [20]byte, tokenID *big.Int) {
	l.entries = append(l.entries, transferEntry{registry: reg, from: from, to: to, tokenID: tokenID})
}

func (l *transferLog) unwind() error {
	var failed error
	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		if err := entry.registry.Transfer(entry.to, entry.from, entry.tokenID); err != nil && failed == nil {
			failed = fmt.Errorf("swap engine: unwind transfer: %w", err)
		}
	}
	return failed
}

func (e *Engine) abort(log *transferLog, err error) error {
	if undoErr := log.unwind(); undoErr != nil {
		return errors.Join(err, undoErr)
	}
	return err
}

// CreateOrder takes custody of the listed asset and persists a new active
// order owned by the caller. The registry enforces ownership and approval at
// transfer time; a failed deposit leaves no state behind.
func (e *Engine) CreateOrder(caller [20]byte, asset AssetRef) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()
	if caller == ([20]byte{}) {
		return 0, fmt.Errorf("%w: caller required", ErrInvalidInput)
	}
	sanitized, err := SanitizeAssetRef(asset)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	reg, err := e.resolveRegistry(sanitized.Registry)
	if err != nil {
		return 0, err
	}
	log := &transferLog{}
	if err := reg.Transfer(caller, e.custody, sanitized.TokenID); err != nil {
		return 0, fmt.Errorf("swap engine: deposit listed asset: %w", err)
	}
	log.record(reg, caller, e.custody, sanitized.TokenID)
	id, err := e.state.OrderNextID()
	if err != nil {
		return 0, e.abort(log, err)
	}
	order := &Order{
		ID:        id,
		Owner:     caller,
		Asset:     sanitized,
		Status:    OrderActive,
		CreatedAt: e.now(),
	}
	if err := e.state.OrderPut(order); err != nil {
		return 0, e.abort(log, err)
	}
	e.emit(NewOrderCreatedEvent(order))
	return id, nil
}

// MakeOffer appends a bundle proposal under an active order. Approval on each
// bundled asset is checked as an optimistic signal only; ownership is
// re-validated at acceptance and nothing moves at offer time.
func (e *Engine) MakeOffer(caller [20]byte, orderID uint64, registries [][20]byte, tokenIDs []*big.Int) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()
	if caller == ([20]byte{}) {
		return 0, fmt.Errorf("%w: caller required", ErrInvalidInput)
	}
	if len(registries) == 0 {
		return 0, fmt.Errorf("%w: bundle must not be empty", ErrInvalidInput)
	}
	if len(registries) != len(tokenIDs) {
		return 0, fmt.Errorf("%w: bundle arrays must have equal length", ErrInvalidInput)
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return 0, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if order.Status != OrderActive {
		return 0, fmt.Errorf("%w: order %d", ErrNotActive, orderID)
	}
	bundle := make([]AssetRef, len(registries))
	for i := range registries {
		sanitized, err := SanitizeAssetRef(AssetRef{Registry: registries[i], TokenID: tokenIDs[i]})
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		bundle[i] = sanitized
	}
	for _, asset := range bundle {
		reg, err := e.resolveRegistry(asset.Registry)
		if err != nil {
			return 0, err
		}
		approved, err := e.hasTransferApproval(reg, caller, asset.TokenID)
		if err != nil {
			return 0, err
		}
		if !approved {
			return 0, fmt.Errorf("%w: asset %s:%s", ErrNotApproved, formatAddress(asset.Registry), asset.TokenID)
		}
	}
	id, err := e.state.OfferNextID()
	if err != nil {
		return 0, err
	}
	count, err := e.state.OfferCountFor(orderID)
	if err != nil {
		return 0, err
	}
	offer := &Offer{
		ID:        id,
		OrderID:   orderID,
		Proposer:  caller,
		Bundle:    bundle,
		Seq:       count + 1,
		CreatedAt: e.now(),
	}
	if err := e.state.OfferPut(offer); err != nil {
		return 0, err
	}
	e.emit(NewOfferMadeEvent(offer))
	return id, nil
}

func (e *Engine) hasTransferApproval(reg TokenRegistry, owner [20]byte, tokenID *big.Int) (bool, error) {
	blanket, err := reg.IsApprovedForAll(owner, e.custody)
	if err != nil {
		return false, fmt.Errorf("swap engine: approval check: %w", err)
	}
	if blanket {
		return true, nil
	}
	spender, err := reg.ApprovedFor(tokenID)
	if err != nil {
		return false, fmt.Errorf("swap engine: approval check: %w", err)
	}
	return spender == e.custody, nil
}

// AcceptOffer executes the atomic exchange: every bundled asset is
// re-validated and moved to the order owner before the listed asset leaves
// custody for the proposer, and the order is marked settled only after every
// transfer has succeeded. Any failure unwinds already-executed transfers so
// partial settlement is never observable.
func (e *Engine) AcceptOffer(caller [20]byte, orderID, offerID uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if order.Status != OrderActive {
		return fmt.Errorf("%w: order %d", ErrNotActive, orderID)
	}
	if caller != order.Owner {
		return fmt.Errorf("%w: only the order owner may accept", ErrUnauthorized)
	}
	offer, ok := e.state.OfferGet(offerID)
	if !ok {
		return fmt.Errorf("%w: offer %d", ErrNotFound, offerID)
	}
	if offer.OrderID != orderID {
		return fmt.Errorf("%w: offer %d does not belong to order %d", ErrNotFound, offerID, orderID)
	}
	// Re-validate every bundled asset before anything moves: ownership can
	// have changed between offer and acceptance.
	bundleRegs := make([]TokenRegistry, len(offer.Bundle))
	for i, asset := range offer.Bundle {
		reg, err := e.resolveRegistry(asset.Registry)
		if err != nil {
			return err
		}
		owner, err := reg.OwnerOf(asset.TokenID)
		if err != nil {
			return fmt.Errorf("swap engine: ownership check: %w", err)
		}
		if owner != offer.Proposer {
			return fmt.Errorf("%w: asset %s:%s no longer owned by proposer", ErrOwnershipMismatch, formatAddress(asset.Registry), asset.TokenID)
		}
		bundleRegs[i] = reg
	}
	log := &transferLog{}
	for i, asset := range offer.Bundle {
		if err := bundleRegs[i].Transfer(offer.Proposer, order.Owner, asset.TokenID); err != nil {
			return e.abort(log, fmt.Errorf("swap engine: transfer bundled asset %s:%s: %w", formatAddress(asset.Registry), asset.TokenID, err))
		}
		log.record(bundleRegs[i], offer.Proposer, order.Owner, asset.TokenID)
	}
	// The listed asset is released last, and only after confirming it is
	// still in custody.
	listedReg, err := e.resolveRegistry(order.Asset.Registry)
	if err != nil {
		return e.abort(log, err)
	}
	holder, err := listedReg.OwnerOf(order.Asset.TokenID)
	if err != nil {
		return e.abort(log, fmt.Errorf("swap engine: custody check: %w", err))
	}
	if holder != e.custody {
		return e.abort(log, fmt.Errorf("%w: order %d", ErrCustodyViolation, orderID))
	}
	if err := listedReg.Transfer(e.custody, offer.Proposer, order.Asset.TokenID); err != nil {
		return e.abort(log, fmt.Errorf("swap engine: release listed asset: %w", err))
	}
	log.record(listedReg, e.custody, offer.Proposer, order.Asset.TokenID)
	if err := e.state.OrderSetStatus(orderID, OrderSettled); err != nil {
		return e.abort(log, err)
	}
	e.emit(NewOfferAcceptedEvent(order, offer))
	return nil
}

// CancelOrder returns the listed asset from custody to the owner and marks
// the order canceled. Outstanding offers remain stored but become permanently
// non-acceptable through the order's terminal status.
func (e *Engine) CancelOrder(caller [20]byte, orderID uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if order.Status != OrderActive {
		return fmt.Errorf("%w: order %d", ErrNotActive, orderID)
	}
	if caller != order.Owner {
		return fmt.Errorf("%w: only the order owner may cancel", ErrUnauthorized)
	}
	reg, err := e.resolveRegistry(order.Asset.Registry)
	if err != nil {
		return err
	}
	holder, err := reg.OwnerOf(order.Asset.TokenID)
	if err != nil {
		return fmt.Errorf("swap engine: custody check: %w", err)
	}
	if holder != e.custody {
		return fmt.Errorf("%w: order %d", ErrCustodyViolation, orderID)
	}
	log := &transferLog{}
	if err := reg.Transfer(e.custody, order.Owner, order.Asset.TokenID); err != nil {
		return fmt.Errorf("swap engine: return listed asset: %w", err)
	}
	log.record(reg, e.custody, order.Owner, order.Asset.TokenID)
	if err := e.state.OrderSetStatus(orderID, OrderCanceled); err != nil {
		return e.abort(log, err)
	}
	e.emit(NewOrderCanceledEvent(order))
	return nil
}

// OrderCount returns the number of orders ever created. Identifiers are
// allocated monotonically from 1 and never reused.
func (e *Engine) OrderCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.OrderCount()
}

// GetOrder returns the stored order, or a zero-valued record when absent.
// Callers distinguish absence by the sentinel zero owner and unknown status.
func (e *Engine) GetOrder(orderID uint64) *Order {
	if e == nil || e.state == nil {
		return &Order{}
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return &Order{}
	}
	return order.Clone()
}

// ListOffers returns every offer recorded against the order, bounded by the
// order's offer count. Safe against absent and terminal orders.
func (e *Engine) ListOffers(orderID uint64) ([]*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	offers, err := e.state.OfferListFor(orderID)
	if err != nil {
		return nil, err
	}
	out := make([]*Offer, len(offers))
	for i, offer := range offers {
		out[i] = offer.Clone()
	}
	return out, nil
}
