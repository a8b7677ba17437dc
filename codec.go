package settlement

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// PackOrder returns the canonical encoding of order bound to the settlement
// instance. All integers are big-endian u64, identities are left-padded to
// 32 bytes:
//
//	instance(32) maker_asset(32) taker_asset(32) maker_amount(8) taker_amount(8)
//	maker(32) nonce(8) maker_traits(8) maker_receiver(32)
func PackOrder(instance common.Hash, order *Order) []byte {
	buf := make([]byte, 0, PackedOrderLength)
	buf = append(buf, instance.Bytes()...)
	buf = append(buf, order.MakerAsset.Bytes()...)
	buf = append(buf, order.TakerAsset.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, order.MakerAmount)
	buf = binary.BigEndian.AppendUint64(buf, order.TakerAmount)
	buf = append(buf, common.LeftPadBytes(order.Maker.Bytes(), 32)...)
	buf = binary.BigEndian.AppendUint64(buf, order.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, order.MakerTraits)
	buf = append(buf, common.LeftPadBytes(order.MakerReceiver.Bytes(), 32)...)
	return buf
}

// UnpackOrder decodes a canonical order encoding.
func UnpackOrder(data []byte) (common.Hash, *Order, error) {
	if len(data) != PackedOrderLength {
		return common.Hash{}, nil, fmt.Errorf("%w: packed order must be %d bytes, got %d", ErrInvalidParam, PackedOrderLength, len(data))
	}

	r := byteReader{data: data}
	instance := r.hash()
	order := &Order{}
	order.MakerAsset = r.hash()
	order.TakerAsset = r.hash()
	order.MakerAmount = r.uint64()
	order.TakerAmount = r.uint64()
	order.Maker = r.address()
	order.Nonce = r.uint64()
	order.MakerTraits = r.uint64()
	order.MakerReceiver = r.address()
	if r.err != nil {
		return common.Hash{}, nil, r.err
	}
	return instance, order, nil
}

// OrderHash is the identity of an order and the message its maker signs:
// the EIP-191 personal-message hash of the packed order.
func OrderHash(instance common.Hash, order *Order) common.Hash {
	return common.BytesToHash(accounts.TextHash(PackOrder(instance, order)))
}

// PackRouterParams encodes a routed fill step: the order without its assets
// followed by the 64-byte compact signature. Assets travel in the step header.
func PackRouterParams(order *Order, signature []byte) ([]byte, error) {
	compact, err := CompactSignature(signature)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, RouterParamsLength)
	buf = binary.BigEndian.AppendUint64(buf, order.MakerAmount)
	buf = binary.BigEndian.AppendUint64(buf, order.TakerAmount)
	buf = append(buf, common.LeftPadBytes(order.Maker.Bytes(), 32)...)
	buf = binary.BigEndian.AppendUint64(buf, order.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, order.MakerTraits)
	buf = append(buf, common.LeftPadBytes(order.MakerReceiver.Bytes(), 32)...)
	buf = append(buf, compact...)
	return buf, nil
}

// UnpackRouterParams decodes a routed fill step for the given asset pair.
// The returned signature is in compact form.
func UnpackRouterParams(data []byte, makerAsset, takerAsset common.Hash) (*Order, []byte, error) {
	if len(data) != RouterParamsLength {
		return nil, nil, fmt.Errorf("%w: router params must be %d bytes, got %d", ErrInvalidParam, RouterParamsLength, len(data))
	}

	r := byteReader{data: data}
	order := &Order{MakerAsset: makerAsset, TakerAsset: takerAsset}
	order.MakerAmount = r.uint64()
	order.TakerAmount = r.uint64()
	order.Maker = r.address()
	order.Nonce = r.uint64()
	order.MakerTraits = r.uint64()
	order.MakerReceiver = r.address()
	sig := r.next(64)
	if r.err != nil {
		return nil, nil, r.err
	}
	return order, common.CopyBytes(sig), nil
}

type byteReader struct {
	data []byte
	off  int
	err  error
}

func (r *byteReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: short buffer", ErrInvalidParam)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *byteReader) hash() common.Hash {
	return common.BytesToHash(r.next(32))
}

func (r *byteReader) uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// address reads a 32-byte left-padded identity.
func (r *byteReader) address() common.Address {
	b := r.next(32)
	if b == nil {
		return common.Address{}
	}
	for _, pad := range b[:12] {
		if pad != 0 {
			r.err = fmt.Errorf("%w: identity is not a 20-byte address", ErrInvalidParam)
			return common.Address{}
		}
	}
	return common.BytesToAddress(b[12:])
}
