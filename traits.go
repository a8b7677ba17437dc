package settlement

import "time"

// Traits is the decoded form of Order.MakerTraits.
//
// Wire layout of the 64-bit field:
//
//	bit 63      maker receiver is a contract
//	bit 62      no partial fills
//	bits 32-61  unused, carried verbatim (they are still part of the order hash)
//	bits 0-31   absolute expiry, unix seconds
type Traits struct {
	Expiry             uint32
	AllowPartialFill   bool
	ReceiverIsContract bool
}

// DecodeTraits unpacks a raw traits field.
func DecodeTraits(raw uint64) Traits {
	return Traits{
		Expiry:             uint32(raw & traitExpiryMask),
		AllowPartialFill:   raw&traitNoPartialFill == 0,
		ReceiverIsContract: raw&traitContractReceiver != 0,
	}
}

// Encode packs the traits into their wire layout.
func (t Traits) Encode() uint64 {
	raw := uint64(t.Expiry)
	if !t.AllowPartialFill {
		raw |= traitNoPartialFill
	}
	if t.ReceiverIsContract {
		raw |= traitContractReceiver
	}
	return raw
}

// ExpiresAt returns the expiry as a time.
func (t Traits) ExpiresAt() time.Time {
	return time.Unix(int64(t.Expiry), 0).UTC()
}

// Expired reports whether the order can no longer be filled at now.
// The expiry second itself is still valid.
func (t Traits) Expired(now time.Time) bool {
	return now.Unix() > int64(t.Expiry)
}

// EncodeTraits builds a raw traits field.
func EncodeTraits(expiry uint32, noPartialFill bool, contractReceiver bool) uint64 {
	return Traits{
		Expiry:             expiry,
		AllowPartialFill:   !noPartialFill,
		ReceiverIsContract: contractReceiver,
	}.Encode()
}
