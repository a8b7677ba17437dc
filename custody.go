package settlement

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Transfer is an outbound movement of value from custody.
type Transfer struct {
	To     Recipient
	Asset  common.Hash
	Amount uint64
}

// Custody is the host's asset transfer primitive. The settlement engine holds
// every escrowed unit in custody; the ledger only tracks who owns what.
type Custody interface {
	// Balance returns the total custodied amount of asset.
	Balance(asset common.Hash) uint64

	// Settle takes the payments attached by from into custody and pays out
	// transfers. Either every leg applies or none does.
	Settle(from common.Address, in []Payment, out []Transfer) error
}

// MemoryCustody is an in-process Custody that also keeps the external wallets
// of every participant, useful for testing and simulation.
type MemoryCustody struct {
	mu      sync.RWMutex
	held    map[common.Hash]uint64
	wallets map[Recipient]map[common.Hash]uint64
	blocked map[Recipient]bool
}

// NewMemoryCustody creates an empty MemoryCustody.
func NewMemoryCustody() *MemoryCustody {
	return &MemoryCustody{
		held:    make(map[common.Hash]uint64),
		wallets: make(map[Recipient]map[common.Hash]uint64),
		blocked: make(map[Recipient]bool),
	}
}

// Mint credits an external account wallet.
func (c *MemoryCustody) Mint(owner common.Address, asset common.Hash, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addWallet(AccountRecipient(owner), asset, amount)
}

// TransferIn moves funds from an external account straight into custody
// without touching the ledger, the way a router hop pre-funds a fill.
func (c *MemoryCustody) TransferIn(from common.Address, asset common.Hash, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := AccountRecipient(from)
	if amount == 0 || c.wallets[w][asset] < amount {
		return fmt.Errorf("%w: insufficient wallet funds", ErrInvalidParam)
	}
	c.wallets[w][asset] -= amount
	c.held[asset] += amount
	return nil
}

// Block makes every transfer to r fail with ErrTransferRejected.
func (c *MemoryCustody) Block(r Recipient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked[r] = true
}

// WalletBalance returns the external balance of r.
func (c *MemoryCustody) WalletBalance(r Recipient, asset common.Hash) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wallets[r][asset]
}

// Balance returns the total custodied amount of asset.
func (c *MemoryCustody) Balance(asset common.Hash) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.held[asset]
}

// Settle applies inbound payments and outbound transfers atomically.
func (c *MemoryCustody) Settle(from common.Address, in []Payment, out []Transfer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payer := AccountRecipient(from)
	spend := make(map[common.Hash]uint64)
	held := make(map[common.Hash]uint64)

	for _, p := range in {
		if p.Amount == 0 {
			continue
		}
		sum, carry := bits.Add64(spend[p.Asset], p.Amount, 0)
		if carry != 0 || sum > c.wallets[payer][p.Asset] {
			return fmt.Errorf("%w: payer cannot cover attached %s", ErrInvalidParam, p.Asset.Hex())
		}
		spend[p.Asset] = sum

		if _, ok := held[p.Asset]; !ok {
			held[p.Asset] = c.held[p.Asset]
		}
		held[p.Asset] += p.Amount
	}

	for _, t := range out {
		if t.Amount == 0 {
			continue
		}
		if c.blocked[t.To] {
			return fmt.Errorf("%w: %s", ErrTransferRejected, t.To.Address.Hex())
		}
		if _, ok := held[t.Asset]; !ok {
			held[t.Asset] = c.held[t.Asset]
		}
		if held[t.Asset] < t.Amount {
			return fmt.Errorf("%w: custody cannot cover %s", ErrBalanceViolation, t.Asset.Hex())
		}
		held[t.Asset] -= t.Amount
	}

	for asset, amount := range spend {
		c.wallets[payer][asset] -= amount
	}
	for asset, amount := range held {
		c.held[asset] = amount
	}
	for _, t := range out {
		if t.Amount > 0 {
			c.addWallet(t.To, t.Asset, t.Amount)
		}
	}
	return nil
}

func (c *MemoryCustody) addWallet(r Recipient, asset common.Hash, amount uint64) {
	w, ok := c.wallets[r]
	if !ok {
		w = make(map[common.Hash]uint64)
		c.wallets[r] = w
	}
	w[asset] += amount
}
