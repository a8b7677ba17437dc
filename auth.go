package settlement

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/patrickmn/go-cache"
)

// RecoverSigner returns the identity that produced signature over hash.
// It accepts 65-byte [R || S || V] signatures with V in {0, 1, 27, 28} and
// 64-byte compact (EIP-2098) signatures. High-S signatures are rejected.
// A signature that does not recover yields ok == false.
func RecoverSigner(hash common.Hash, signature []byte) (signer common.Address, ok bool) {
	sig, err := normalizeSignature(signature)
	if err != nil {
		return common.Address{}, false
	}

	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(*pub), true
}

// SignOrder signs the order hash with key. The recovery id is encoded as 27/28.
func SignOrder(instance common.Hash, order *Order, key *ecdsa.PrivateKey) ([]byte, error) {
	hash := OrderHash(instance, order)
	signature, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	signature[64] += 27
	return signature, nil
}

// CompactSignature converts a signature into its 64-byte EIP-2098 form.
func CompactSignature(signature []byte) ([]byte, error) {
	sig, err := normalizeSignature(signature)
	if err != nil {
		return nil, err
	}

	compact := make([]byte, 64)
	copy(compact, sig[:64])
	if sig[64] == 1 {
		compact[32] |= 0x80
	}
	return compact, nil
}

// normalizeSignature returns a 65-byte signature with V in {0, 1}.
func normalizeSignature(signature []byte) ([]byte, error) {
	sig := make([]byte, 65)

	switch len(signature) {
	case 65:
		copy(sig, signature)
		if sig[64] >= 27 {
			sig[64] -= 27
		}
	case 64:
		copy(sig, signature)
		sig[64] = sig[32] >> 7
		sig[32] &= 0x7f
	default:
		return nil, fmt.Errorf("%w: signature must be 64 or 65 bytes, got %d", ErrInvalidOrderSignature, len(signature))
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, true) {
		return nil, ErrInvalidOrderSignature
	}
	return sig, nil
}

type recovered struct {
	signer common.Address
	ok     bool
}

// Authorizer decides whether a signature authorizes an order. Recovery is a
// pure function of (hash, signature) so its results are memoized; the
// delegate check always reads the current ledger.
type Authorizer struct {
	ledger *Ledger
	cache  *cache.Cache
}

// NewAuthorizer creates an Authorizer. A zero ttl disables the recovery cache.
func NewAuthorizer(ledger *Ledger, ttl time.Duration) *Authorizer {
	a := &Authorizer{ledger: ledger}
	if ttl > 0 {
		a.cache = cache.New(ttl, 2*ttl)
	}
	return a
}

// Recover returns the signer of hash.
func (a *Authorizer) Recover(hash common.Hash, signature []byte) (common.Address, bool) {
	if a.cache == nil {
		return RecoverSigner(hash, signature)
	}

	key := string(hash.Bytes()) + string(signature)
	if v, found := a.cache.Get(key); found {
		r := v.(recovered)
		return r.signer, r.ok
	}

	signer, ok := RecoverSigner(hash, signature)
	a.cache.Set(key, recovered{signer: signer, ok: ok}, cache.DefaultExpiration)
	return signer, ok
}

// IsAuthorized reports whether identity may act for maker: it is the maker
// itself or one of the maker's active order signer delegates.
func (a *Authorizer) IsAuthorized(identity common.Address, maker common.Address) bool {
	if identity == maker {
		return true
	}
	return a.ledger.IsDelegate(maker, identity)
}

// Authorize reports whether signature over hash was produced by maker or an
// active delegate of maker.
func (a *Authorizer) Authorize(hash common.Hash, maker common.Address, signature []byte) bool {
	signer, ok := a.Recover(hash, signature)
	if !ok {
		return false
	}
	return a.IsAuthorized(signer, maker)
}
