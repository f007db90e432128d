package writeset

import (
	"bytes"
	"testing"

	"github.com/codership/galera-sub007/checksum"
	"github.com/codership/galera-sub007/wsrep/keyset"
	"github.com/codership/galera-sub007/wsrep/recordset"
)

func testConfig() Config {
	return Config{
		KeySetRSVersion:  recordset.VER1,
		DataSetRSVersion: recordset.VER1,
		KeySetWSVersion:  keyset.WSVer3,
		KeyFormat:        keyset.FLAT8,
		ChecksumKind:     checksum.MMHNone,
		MaxPayloadSize:   1 << 20,
	}
}

// TestEmptyWriteSetRoundTrip mirrors spec.md §8 scenario 1: a VER3
// write-set with no keys, no data, flags=0, source all-zero, conn=0,
// trx=0, last_seen=-1 must round-trip through parse(serialize).
func TestEmptyWriteSetRoundTrip(t *testing.T) {
	b := NewBuilder(testConfig())
	var gathered [][]byte
	if _, err := b.Gather(-1, 12345, 0, &gathered); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if err := b.Finalize(-1, 12345, 0); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	buf := bytes.Join(gathered, nil)
	if len(buf) != HeaderSize {
		t.Fatalf("len(buf) = %d, want %d (empty keyset/dataset emit nothing)", len(buf), HeaderSize)
	}

	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header.LastSeen != -1 {
		t.Fatalf("LastSeen = %d, want -1", r.Header.LastSeen)
	}
	if r.Header.Flags != 0 {
		t.Fatalf("Flags = %#x, want 0", r.Header.Flags)
	}
	if r.Header.ConnID != 0 || r.Header.TrxID != 0 {
		t.Fatalf("ConnID/TrxID = %d/%d, want 0/0", r.Header.ConnID, r.Header.TrxID)
	}
	var zeroSource [16]byte
	if r.Header.Source != zeroSource {
		t.Fatalf("Source = %v, want all-zero", r.Header.Source)
	}
	if err := r.VerifyChecksum(); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}

	dataReader, err := r.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if dataReader.Count() != 0 {
		t.Fatalf("data Count() = %d, want 0", dataReader.Count())
	}
}

// TestSingleKeySingleDataRoundTrip mirrors spec.md §8 scenario 2.
func TestSingleKeySingleDataRoundTrip(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD}

	var source [16]byte
	source[0] = 0xEE
	cfg := testConfig()
	cfg.Source = source
	cfg.ConnID = 652653
	cfg.TrxID = 99994952
	b := NewBuilder(cfg)
	b.SetFlags(0xabcd | 0x1234)
	outcome, err := b.AppendKey([][]byte{[]byte("a0")}, keyset.TypeShared)
	if err != nil {
		t.Fatalf("AppendKey: %v", err)
	}
	if outcome != keyset.Inserted {
		t.Fatalf("key outcome = %v, want Inserted", outcome)
	}
	if _, err := b.AppendData(payload); err != nil {
		t.Fatalf("AppendData: %v", err)
	}

	var gathered [][]byte
	if _, err := b.Gather(1, 99, 0, &gathered); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if err := b.Finalize(1, 99, 0); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	buf := bytes.Join(gathered, nil)

	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header.LastSeen != 1 {
		t.Fatalf("LastSeen = %d, want 1", r.Header.LastSeen)
	}
	if r.Header.ConnID != 652653 || r.Header.TrxID != 99994952 {
		t.Fatalf("ConnID/TrxID = %d/%d, want 652653/99994952", r.Header.ConnID, r.Header.TrxID)
	}
	if r.Header.Source != source {
		t.Fatalf("Source mismatch")
	}

	keysIn, err := recordset.NewInput(r.KeysBytes(), true)
	if err != nil {
		t.Fatalf("recordset.NewInput(keys): %v", err)
	}
	rec, err := keysIn.Next()
	if err != nil {
		t.Fatalf("keys Next: %v", err)
	}
	part, err := keyset.DecodePart(rec, keyset.FLAT8)
	if err != nil {
		t.Fatalf("DecodePart: %v", err)
	}
	wantPrefix := keyset.LeafPrefix(keyset.TypeShared, keyset.WSVer3)
	if part.Prefix != wantPrefix {
		t.Fatalf("key prefix = %v, want %v (shared @ VER3)", part.Prefix, wantPrefix)
	}
	if wantPrefix != keyset.PrefixShared {
		t.Fatalf("VER3 shared leaf prefix should be PrefixShared (0), got %v", wantPrefix)
	}

	dataReader, err := r.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	got, err := dataReader.Next()
	if err != nil {
		t.Fatalf("data Next: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("data payload = %v, want %v", got, payload)
	}
}

// TestKeySetPrefixUpgradeThroughWriteSet mirrors spec.md §8 scenario 3 at
// the WriteSet level: appending the same key first as shared, then as
// exclusive, must leave both leaf records on the wire with the stronger
// one recorded in the key set.
func TestKeySetPrefixUpgradeThroughWriteSet(t *testing.T) {
	b := NewBuilder(testConfig())
	if _, err := b.AppendKey([][]byte{[]byte("a0"), []byte("a1")}, keyset.TypeShared); err != nil {
		t.Fatalf("first AppendKey: %v", err)
	}
	outcome, err := b.AppendKey([][]byte{[]byte("a0"), []byte("a1")}, keyset.TypeExclusive)
	if err != nil {
		t.Fatalf("second AppendKey: %v", err)
	}
	if outcome != keyset.Replaced {
		t.Fatalf("outcome = %v, want Replaced", outcome)
	}

	var gathered [][]byte
	if _, err := b.Gather(0, 0, 0, &gathered); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	buf := bytes.Join(gathered, nil)
	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	keysIn, err := recordset.NewInput(r.KeysBytes(), true)
	if err != nil {
		t.Fatalf("recordset.NewInput(keys): %v", err)
	}
	recordCount := 0
	var sawExclusive bool
	for {
		rec, err := keysIn.Next()
		if err != nil {
			break
		}
		recordCount++
		part, err := keyset.DecodePart(rec, keyset.FLAT8)
		if err != nil {
			t.Fatalf("DecodePart: %v", err)
		}
		if part.Prefix == keyset.PrefixExclusive {
			sawExclusive = true
		}
	}
	if !sawExclusive {
		t.Fatalf("expected an exclusive-prefix leaf record on the wire")
	}
	// Root branch ("a0") + weaker shared leaf + stronger exclusive leaf.
	if recordCount != 3 {
		t.Fatalf("recordCount = %d, want 3 (both leaf records retained on the wire)", recordCount)
	}
}

// TestReaderGatherExcludesKeySet mirrors spec.md §4.6: a certification-only
// peer can re-gather a write-set with its key set dropped, leaving the
// data set intact and the header's key-set version reset to EMPTY.
func TestReaderGatherExcludesKeySet(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	b := NewBuilder(testConfig())
	if _, err := b.AppendKey([][]byte{[]byte("a0")}, keyset.TypeShared); err != nil {
		t.Fatalf("AppendKey: %v", err)
	}
	if _, err := b.AppendData(payload); err != nil {
		t.Fatalf("AppendData: %v", err)
	}
	var gathered [][]byte
	if _, err := b.Gather(5, 0, 0, &gathered); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	r, err := NewReader(bytes.Join(gathered, nil))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	var reGathered [][]byte
	n, err := r.Gather(&reGathered, false, true)
	if err != nil {
		t.Fatalf("reader Gather: %v", err)
	}
	buf := bytes.Join(reGathered, nil)
	if len(buf) != n {
		t.Fatalf("reported length %d, joined buffer is %d bytes", n, len(buf))
	}

	r2, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader(re-gathered): %v", err)
	}
	if r2.Header.KeySetVersion != 0 {
		t.Fatalf("KeySetVersion = %d, want 0 (EMPTY) after excluding keys", r2.Header.KeySetVersion)
	}
	if len(r2.KeysBytes()) != 0 {
		t.Fatalf("expected no key bytes after excluding keys")
	}
	if err := r2.VerifyChecksum(); err != nil {
		t.Fatalf("VerifyChecksum on re-gathered write-set: %v", err)
	}
	dataReader, err := r2.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	got, err := dataReader.Next()
	if err != nil {
		t.Fatalf("data Next: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("data payload = %v, want %v", got, payload)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	b := NewBuilder(testConfig())
	var gathered [][]byte
	if _, err := b.Gather(0, 0, 0, &gathered); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	buf := bytes.Join(gathered, nil)
	buf[0] = 'X'
	if _, err := Decode(buf); err == nil {
		t.Fatalf("expected bad-magic error")
	}
}

func TestSetSeqnoMarksCertified(t *testing.T) {
	b := NewBuilder(testConfig())
	var gathered [][]byte
	if _, err := b.Gather(-1, 0, 0, &gathered); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if err := b.Finalize(-1, 0, 0); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	buf := bytes.Join(gathered, nil)

	if err := SetSeqno(buf, 42, 7); err != nil {
		t.Fatalf("SetSeqno: %v", err)
	}
	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if !r.Header.Certified() {
		t.Fatalf("expected certified flag set")
	}
	if r.Header.LastSeen != 42 {
		t.Fatalf("LastSeen = %d, want 42", r.Header.LastSeen)
	}
	if r.Header.PARange != 7 {
		t.Fatalf("PARange = %d, want 7", r.Header.PARange)
	}
}
