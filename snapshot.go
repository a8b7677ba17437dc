package settlement

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/xid"
	"github.com/zeebo/blake3"
)

// Segment names inside snapshot.bin.
const (
	segmentState     = "state"
	segmentBalances  = "balances"
	segmentNonces    = "nonces"
	segmentFills     = "fills"
	segmentDelegates = "delegates"
)

// SettlementSnapshot is the full state of a settlement instance.
type SettlementSnapshot struct {
	Instance     common.Hash    `json:"instance"`
	SeqID        uint64         `json:"seq_id"`          // last SettlementLog sequence ID
	LastCmdSeqID uint64         `json:"last_cmd_seq_id"` // last processed command sequence ID from MQ
	Ledger       LedgerSnapshot `json:"ledger"`
}

// LedgerSnapshot holds every ledger table in a deterministic order.
type LedgerSnapshot struct {
	Balances  []BalanceEntry  `json:"balances"`
	Nonces    []NonceEntry    `json:"nonces"`
	Fills     []FillEntry     `json:"fills"`
	Delegates []DelegateEntry `json:"delegates"`
}

type BalanceEntry struct {
	Maker  common.Address `json:"maker"`
	Asset  common.Hash    `json:"asset"`
	Amount uint64         `json:"amount"`
}

type NonceEntry struct {
	Maker      common.Address `json:"maker"`
	MakerAsset common.Hash    `json:"maker_asset"`
	TakerAsset common.Hash    `json:"taker_asset"`
	Floor      uint64         `json:"floor"`
}

type FillEntry struct {
	OrderHash         common.Hash `json:"order_hash"`
	Cancelled         bool        `json:"cancelled"`
	TakerFilledAmount uint64      `json:"taker_filled_amount"`
}

type DelegateEntry struct {
	Maker    common.Address `json:"maker"`
	Delegate common.Address `json:"delegate"`
}

// SnapshotMetadata describes a stored snapshot (metadata.json).
type SnapshotMetadata struct {
	SchemaVersion    int         `json:"schema_version"`
	SnapshotID       string      `json:"snapshot_id"`
	Timestamp        int64       `json:"timestamp"`       // Unix Nano
	LastCmdSeqID     uint64      `json:"last_cmd_seq_id"` // MQ offset to resume from
	EngineVersion    string      `json:"engine_version"`
	Instance         common.Hash `json:"instance"`
	SnapshotChecksum string      `json:"snapshot_checksum"` // BLAKE3 of the entire snapshot.bin
}

// SnapshotFileFooter is stored at the end of snapshot.bin.
// Layout: [Segments...][FooterJSON][FooterLength(4 bytes, big endian)]
type SnapshotFileFooter struct {
	Segments []SnapshotSegment `json:"segments"`
}

// SnapshotSegment locates one table inside snapshot.bin.
type SnapshotSegment struct {
	Name     string `json:"name"`
	Offset   int64  `json:"offset"`
	Length   int64  `json:"length"`
	Checksum string `json:"checksum"` // BLAKE3 of this segment
}

type snapshotState struct {
	Instance     common.Hash `json:"instance"`
	SeqID        uint64      `json:"seq_id"`
	LastCmdSeqID uint64      `json:"last_cmd_seq_id"`
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// snapshot copies every table. Balances follow the ordered index; the hash
// keyed tables are sorted so equal ledgers always encode to equal bytes.
func (l *Ledger) snapshot() LedgerSnapshot {
	snap := LedgerSnapshot{
		Balances:  make([]BalanceEntry, 0, len(l.balances)),
		Nonces:    make([]NonceEntry, 0, len(l.nonces)),
		Fills:     make([]FillEntry, 0, len(l.fills)),
		Delegates: make([]DelegateEntry, 0, len(l.delegates)),
	}

	for elem := l.index.Front(); elem != nil; elem = elem.Next() {
		raw, _ := elem.Key().(string)
		key := balanceKeyFromIndex(raw)
		snap.Balances = append(snap.Balances, BalanceEntry{Maker: key.maker, Asset: key.asset, Amount: l.balances[key]})
	}

	for key, floor := range l.nonces {
		snap.Nonces = append(snap.Nonces, NonceEntry{Maker: key.maker, MakerAsset: key.makerAsset, TakerAsset: key.takerAsset, Floor: floor})
	}
	slices.SortFunc(snap.Nonces, func(a, b NonceEntry) int {
		if c := bytes.Compare(a.Maker[:], b.Maker[:]); c != 0 {
			return c
		}
		if c := bytes.Compare(a.MakerAsset[:], b.MakerAsset[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.TakerAsset[:], b.TakerAsset[:])
	})

	for hash, status := range l.fills {
		snap.Fills = append(snap.Fills, FillEntry{OrderHash: hash, Cancelled: status.Cancelled, TakerFilledAmount: status.TakerFilledAmount})
	}
	slices.SortFunc(snap.Fills, func(a, b FillEntry) int {
		return bytes.Compare(a.OrderHash[:], b.OrderHash[:])
	})

	for key := range l.delegates {
		snap.Delegates = append(snap.Delegates, DelegateEntry{Maker: key.maker, Delegate: key.delegate})
	}
	slices.SortFunc(snap.Delegates, func(a, b DelegateEntry) int {
		if c := bytes.Compare(a.Maker[:], b.Maker[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.Delegate[:], b.Delegate[:])
	})

	return snap
}

// restore replaces every table with the snapshot content. Totals are rebuilt
// from the balances.
func (l *Ledger) restore(snap *LedgerSnapshot) error {
	fresh := NewLedger()

	for _, b := range snap.Balances {
		if b.Amount == 0 {
			continue
		}
		key := balanceKey{maker: b.Maker, asset: b.Asset}
		if _, dup := fresh.balances[key]; dup {
			return fmt.Errorf("%w: duplicate balance for %s", ErrInvalidParam, b.Maker.Hex())
		}
		if fresh.totals[b.Asset] > math.MaxUint64-b.Amount {
			return fmt.Errorf("%w: total overflow", ErrBalanceViolation)
		}
		fresh.setBalance(key, b.Amount)
		fresh.totals[b.Asset] += b.Amount
	}
	for _, n := range snap.Nonces {
		fresh.raiseNonceFloor(n.Maker, n.MakerAsset, n.TakerAsset, n.Floor)
	}
	for _, f := range snap.Fills {
		fresh.setFillStatus(f.OrderHash, FillStatus{Cancelled: f.Cancelled, TakerFilledAmount: f.TakerFilledAmount})
	}
	for _, d := range snap.Delegates {
		fresh.setDelegate(d.Maker, d.Delegate, true)
	}

	*l = *fresh
	return nil
}

// encodeSnapshot writes snap in the snapshot.bin layout.
func encodeSnapshot(snap *SettlementSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	segments := make([]SnapshotSegment, 0, 5)

	write := func(name string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s segment: %w", name, err)
		}
		segments = append(segments, SnapshotSegment{
			Name:     name,
			Offset:   int64(buf.Len()),
			Length:   int64(len(data)),
			Checksum: digest(data),
		})
		buf.Write(data)
		return nil
	}

	state := snapshotState{Instance: snap.Instance, SeqID: snap.SeqID, LastCmdSeqID: snap.LastCmdSeqID}
	if err := write(segmentState, state); err != nil {
		return nil, err
	}
	if err := write(segmentBalances, snap.Ledger.Balances); err != nil {
		return nil, err
	}
	if err := write(segmentNonces, snap.Ledger.Nonces); err != nil {
		return nil, err
	}
	if err := write(segmentFills, snap.Ledger.Fills); err != nil {
		return nil, err
	}
	if err := write(segmentDelegates, snap.Ledger.Delegates); err != nil {
		return nil, err
	}

	footerData, err := json.Marshal(SnapshotFileFooter{Segments: segments})
	if err != nil {
		return nil, err
	}
	if len(footerData) > math.MaxUint32 {
		return nil, errors.New("footer too large")
	}
	buf.Write(footerData)
	//nolint:gosec // length verified above
	buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(footerData))))

	return buf.Bytes(), nil
}

// decodeSnapshot verifies data against checksum and parses it.
func decodeSnapshot(data []byte, checksum string) (*SettlementSnapshot, error) {
	if digest(data) != checksum {
		return nil, fmt.Errorf("%w: snapshot.bin", ErrChecksumMismatch)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: snapshot too short", ErrChecksumMismatch)
	}

	footerLen := int64(binary.BigEndian.Uint32(data[len(data)-4:]))
	footerOffset := int64(len(data)) - 4 - footerLen
	if footerOffset < 0 {
		return nil, fmt.Errorf("%w: footer out of range", ErrChecksumMismatch)
	}

	var footer SnapshotFileFooter
	if err := json.Unmarshal(data[footerOffset:footerOffset+footerLen], &footer); err != nil {
		return nil, fmt.Errorf("decode footer: %w", err)
	}

	snap := &SettlementSnapshot{}
	for _, segment := range footer.Segments {
		if segment.Offset < 0 || segment.Length < 0 || segment.Offset+segment.Length > footerOffset {
			return nil, fmt.Errorf("%w: segment %s out of range", ErrChecksumMismatch, segment.Name)
		}
		segmentData := data[segment.Offset : segment.Offset+segment.Length]
		if digest(segmentData) != segment.Checksum {
			return nil, fmt.Errorf("%w: segment %s", ErrChecksumMismatch, segment.Name)
		}

		var target any
		switch segment.Name {
		case segmentState:
			state := &snapshotState{}
			if err := json.Unmarshal(segmentData, state); err != nil {
				return nil, fmt.Errorf("decode %s segment: %w", segment.Name, err)
			}
			snap.Instance = state.Instance
			snap.SeqID = state.SeqID
			snap.LastCmdSeqID = state.LastCmdSeqID
			continue
		case segmentBalances:
			target = &snap.Ledger.Balances
		case segmentNonces:
			target = &snap.Ledger.Nonces
		case segmentFills:
			target = &snap.Ledger.Fills
		case segmentDelegates:
			target = &snap.Ledger.Delegates
		default:
			logger.Warn("unknown snapshot segment skipped", "segment", segment.Name)
			continue
		}
		if err := json.Unmarshal(segmentData, target); err != nil {
			return nil, fmt.Errorf("decode %s segment: %w", segment.Name, err)
		}
	}

	return snap, nil
}

// Snapshot captures the settlement state. lastCmdSeqID is recorded for replay.
func (s *Settlement) Snapshot(lastCmdSeqID uint64) *SettlementSnapshot {
	return &SettlementSnapshot{
		Instance:     s.instance,
		SeqID:        s.seqID,
		LastCmdSeqID: lastCmdSeqID,
		Ledger:       s.ledger.snapshot(),
	}
}

// Restore replaces the settlement state with snap. The snapshot must belong
// to the same instance.
func (s *Settlement) Restore(snap *SettlementSnapshot) error {
	if snap.Instance != s.instance {
		return fmt.Errorf("%w: snapshot of instance %s", ErrInvalidParam, snap.Instance.Hex())
	}
	if err := s.ledger.restore(&snap.Ledger); err != nil {
		return err
	}
	s.seqID = snap.SeqID
	return nil
}

func newSnapshotMetadata(snap *SettlementSnapshot, data []byte, now int64) *SnapshotMetadata {
	return &SnapshotMetadata{
		SchemaVersion:    SnapshotSchemaVersion,
		SnapshotID:       xid.New().String(),
		Timestamp:        now,
		LastCmdSeqID:     snap.LastCmdSeqID,
		EngineVersion:    EngineVersion,
		Instance:         snap.Instance,
		SnapshotChecksum: digest(data),
	}
}
