package settlement

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huandu/skiplist"
)

type balanceKey struct {
	maker common.Address
	asset common.Hash
}

// indexKey orders balances by maker, then asset.
func (k balanceKey) indexKey() string {
	buf := make([]byte, 0, common.AddressLength+common.HashLength)
	buf = append(buf, k.maker.Bytes()...)
	buf = append(buf, k.asset.Bytes()...)
	return string(buf)
}

func balanceKeyFromIndex(s string) balanceKey {
	b := []byte(s)
	return balanceKey{
		maker: common.BytesToAddress(b[:common.AddressLength]),
		asset: common.BytesToHash(b[common.AddressLength:]),
	}
}

type nonceKey struct {
	maker      common.Address
	makerAsset common.Hash
	takerAsset common.Hash
}

type delegateKey struct {
	maker    common.Address
	delegate common.Address
}

// Ledger owns every persisted table of a settlement instance: maker escrow
// balances, nonce floors, fill status and signer delegates. It is not safe for
// concurrent use; the engine serializes access.
type Ledger struct {
	balances  map[balanceKey]uint64
	index     *skiplist.SkipList // ordered set of balance keys, value unused
	totals    map[common.Hash]uint64
	nonces    map[nonceKey]uint64
	fills     map[common.Hash]FillStatus
	delegates map[delegateKey]bool
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:  make(map[balanceKey]uint64),
		index:     skiplist.New(skiplist.String),
		totals:    make(map[common.Hash]uint64),
		nonces:    make(map[nonceKey]uint64),
		fills:     make(map[common.Hash]FillStatus),
		delegates: make(map[delegateKey]bool),
	}
}

// MakerBalance returns the escrowed amount of asset owned by maker.
func (l *Ledger) MakerBalance(maker common.Address, asset common.Hash) uint64 {
	return l.balances[balanceKey{maker: maker, asset: asset}]
}

// Total returns the sum of all maker balances of asset.
func (l *Ledger) Total(asset common.Hash) uint64 {
	return l.totals[asset]
}

// MakerBalances lists the non-zero balances of maker ordered by asset.
func (l *Ledger) MakerBalances(maker common.Address) []AssetBalance {
	prefix := maker.Bytes()
	result := make([]AssetBalance, 0)

	for elem := l.index.Find(string(prefix)); elem != nil; elem = elem.Next() {
		raw, _ := elem.Key().(string)
		if !bytes.HasPrefix([]byte(raw), prefix) {
			break
		}
		key := balanceKeyFromIndex(raw)
		result = append(result, AssetBalance{Asset: key.asset, Amount: l.balances[key]})
	}
	return result
}

// NonceFloor returns the highest invalidated nonce for the maker and asset pair.
func (l *Ledger) NonceFloor(maker common.Address, makerAsset, takerAsset common.Hash) uint64 {
	return l.nonces[nonceKey{maker: maker, makerAsset: makerAsset, takerAsset: takerAsset}]
}

// FillStatus returns the fill status of an order hash. Untouched orders
// report the zero status.
func (l *Ledger) FillStatus(orderHash common.Hash) FillStatus {
	return l.fills[orderHash]
}

// IsDelegate reports whether delegate may sign orders for maker.
func (l *Ledger) IsDelegate(maker, delegate common.Address) bool {
	return l.delegates[delegateKey{maker: maker, delegate: delegate}]
}

// raiseNonceFloor moves the floor up to nonce; it never lowers it.
func (l *Ledger) raiseNonceFloor(maker common.Address, makerAsset, takerAsset common.Hash, nonce uint64) uint64 {
	key := nonceKey{maker: maker, makerAsset: makerAsset, takerAsset: takerAsset}
	if nonce > l.nonces[key] {
		l.nonces[key] = nonce
	}
	return l.nonces[key]
}

func (l *Ledger) setFillStatus(orderHash common.Hash, status FillStatus) {
	l.fills[orderHash] = status
}

func (l *Ledger) setDelegate(maker, delegate common.Address, active bool) {
	key := delegateKey{maker: maker, delegate: delegate}
	if active {
		l.delegates[key] = true
		return
	}
	delete(l.delegates, key)
}

func (l *Ledger) setBalance(key balanceKey, amount uint64) {
	if amount == 0 {
		delete(l.balances, key)
		l.index.Remove(key.indexKey())
		return
	}
	if _, exists := l.balances[key]; !exists {
		l.index.Set(key.indexKey(), nil)
	}
	l.balances[key] = amount
}

// batch stages balance and fill-status changes against the current ledger.
// Nothing is visible until commit, so an aborted call leaves no trace.
func (l *Ledger) batch() *ledgerBatch {
	return &ledgerBatch{
		ledger:   l,
		balances: make(map[balanceKey]uint64),
		totals:   make(map[common.Hash]uint64),
		fills:    make(map[common.Hash]FillStatus),
	}
}

type ledgerBatch struct {
	ledger   *Ledger
	balances map[balanceKey]uint64
	totals   map[common.Hash]uint64
	fills    map[common.Hash]FillStatus
}

func (b *ledgerBatch) balance(key balanceKey) uint64 {
	if v, ok := b.balances[key]; ok {
		return v
	}
	return b.ledger.balances[key]
}

func (b *ledgerBatch) total(asset common.Hash) uint64 {
	if v, ok := b.totals[asset]; ok {
		return v
	}
	return b.ledger.totals[asset]
}

// credit adds amount to a maker balance.
func (b *ledgerBatch) credit(maker common.Address, asset common.Hash, amount uint64) error {
	key := balanceKey{maker: maker, asset: asset}

	balance, carry := bits.Add64(b.balance(key), amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: balance overflow", ErrBalanceViolation)
	}
	total, carry := bits.Add64(b.total(asset), amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: total overflow", ErrBalanceViolation)
	}

	b.balances[key] = balance
	b.totals[asset] = total
	return nil
}

// debit removes amount from a maker balance. Callers check the balance first;
// reaching the error here means the ledger is inconsistent.
func (b *ledgerBatch) debit(maker common.Address, asset common.Hash, amount uint64) error {
	key := balanceKey{maker: maker, asset: asset}

	balance := b.balance(key)
	total := b.total(asset)
	if balance < amount || total < amount {
		return fmt.Errorf("%w: debit exceeds balance", ErrBalanceViolation)
	}

	b.balances[key] = balance - amount
	b.totals[asset] = total - amount
	return nil
}

func (b *ledgerBatch) setFillStatus(orderHash common.Hash, status FillStatus) {
	b.fills[orderHash] = status
}

func (b *ledgerBatch) commit() {
	for key, amount := range b.balances {
		b.ledger.setBalance(key, amount)
	}
	for asset, total := range b.totals {
		if total == 0 {
			delete(b.ledger.totals, asset)
			continue
		}
		b.ledger.totals[asset] = total
	}
	for hash, status := range b.fills {
		b.ledger.setFillStatus(hash, status)
	}
}
