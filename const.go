package settlement

const (
	// EngineVersion is the current version of the settlement engine
	EngineVersion = "v1.0.0"

	// SnapshotSchemaVersion is the current version of the snapshot schema
	// Increment this when the snapshot format changes in a backward-incompatible way
	SnapshotSchemaVersion = 1

	// MaxExpiry is the largest expiry representable in the traits field.
	MaxExpiry uint32 = 4_294_967_295

	// PackedOrderLength is the size of the canonical order encoding.
	PackedOrderLength = 192

	// RouterParamsLength is the size of an encoded routed fill step.
	RouterParamsLength = 160

	defaultRingCapacity = 4096
)

// Traits bit layout.
const (
	traitContractReceiver uint64 = 1 << 63
	traitNoPartialFill    uint64 = 1 << 62
	traitExpiryMask       uint64 = 0x00000000ffffffff
)
