package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codership/galera-sub007/checksum"
	"github.com/codership/galera-sub007/config"
	"github.com/codership/galera-sub007/gcomm/viewstate"
	"github.com/codership/galera-sub007/wsrep/keyset"
	"github.com/codership/galera-sub007/wsrep/writeset"
	"github.com/google/uuid"
)

// Context bundles the CLI's I/O and configuration so command bodies
// stay testable without touching os.Stdout/os.Stderr directly.
type Context struct {
	Stdout io.Writer
	Stderr io.Writer
	Cfg    config.Config
}

// DefaultContext returns a Context wired to the process's real stdio
// and the core's default configuration.
func DefaultContext() *Context {
	return &Context{Stdout: os.Stdout, Stderr: os.Stderr, Cfg: config.DefaultConfig()}
}

// keySpec describes one multi-part key on the command line: "type:hex,hex,...".
type keySpec struct {
	Type  keyset.KeyType
	Parts [][]byte
}

func parseKeySpec(raw string) (keySpec, error) {
	typeStr, rest, found := strings.Cut(raw, ":")
	if !found {
		return keySpec{}, fmt.Errorf("key spec %q: want TYPE:hexpart,hexpart,...", raw)
	}
	var kt keyset.KeyType
	switch strings.ToUpper(typeStr) {
	case "SHARED":
		kt = keyset.TypeShared
	case "REFERENCE":
		kt = keyset.TypeReference
	case "UPDATE":
		kt = keyset.TypeUpdate
	case "EXCLUSIVE":
		kt = keyset.TypeExclusive
	default:
		return keySpec{}, fmt.Errorf("key spec %q: type must be one of SHARED, REFERENCE, UPDATE, EXCLUSIVE", raw)
	}
	var parts [][]byte
	for _, tok := range strings.Split(rest, ",") {
		if tok == "" {
			continue
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return keySpec{}, fmt.Errorf("key spec %q: part %q: %w", raw, tok, err)
		}
		parts = append(parts, b)
	}
	if len(parts) == 0 {
		return keySpec{}, fmt.Errorf("key spec %q: at least one part required", raw)
	}
	return keySpec{Type: kt, Parts: parts}, nil
}

// BuildOptions configures the "build" subcommand.
type BuildOptions struct {
	Keys       []string
	Data       []string
	ConnID     uint64
	TrxID      uint64
	LastSeen   int64
	Seqno      int64
	OutputPath string
}

// RunBuild assembles a write-set from the given key/data specs and
// writes its serialized bytes to OutputPath.
func RunBuild(ctx *Context, opts BuildOptions) error {
	cfg := writeset.Config{
		KeySetRSVersion:  1,
		DataSetRSVersion: 1,
		KeySetWSVersion:  keyset.WSVersion(ctx.Cfg.ProtocolMax),
		KeyFormat:        ctx.Cfg.KeyFormat,
		ChecksumKind:     checksum.MMH128,
		MaxPayloadSize:   ctx.Cfg.MaxWriteSetSize,
		ConnID:           opts.ConnID,
		TrxID:            opts.TrxID,
	}
	b := writeset.NewBuilder(cfg)

	for _, raw := range opts.Keys {
		spec, err := parseKeySpec(raw)
		if err != nil {
			return err
		}
		if _, err := b.AppendKey(spec.Parts, spec.Type); err != nil {
			return fmt.Errorf("append key: %w", err)
		}
	}
	for _, raw := range opts.Data {
		record, err := hex.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("data record %q: %w", raw, err)
		}
		if _, err := b.AppendData(record); err != nil {
			return fmt.Errorf("append data: %w", err)
		}
	}

	var out [][]byte
	if _, err := b.Gather(opts.LastSeen, 0, 0, &out); err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	if err := writeset.SetSeqno(out[0], opts.Seqno, 0); err != nil {
		return fmt.Errorf("set seqno: %w", err)
	}

	f, err := os.OpenFile(opts.OutputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.OutputPath, err)
	}
	defer f.Close()
	for _, chunk := range out {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("write %s: %w", opts.OutputPath, err)
		}
	}
	fmt.Fprintf(ctx.Stdout, "wrote write-set to %s\n", opts.OutputPath)
	return nil
}

// dumpReport is the JSON shape printed by the "dump" subcommand.
type dumpReport struct {
	HeaderSize     int    `json:"header_size"`
	Flags          uint16 `json:"flags"`
	Certified      bool   `json:"certified"`
	LastSeen       int64  `json:"last_seen_or_seqno"`
	Timestamp      int64  `json:"timestamp"`
	ConnID         uint64 `json:"conn_id"`
	TrxID          uint64 `json:"trx_id"`
	KeySetVersion  uint8  `json:"keyset_version"`
	DataSetVersion uint8  `json:"dataset_version"`
	DataRecords    int    `json:"data_records"`
}

// RunDump reads a write-set file and prints a JSON summary of its
// header and payload record counts.
func RunDump(ctx *Context, inputPath string) error {
	buf, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}
	r, err := writeset.NewReader(buf)
	if err != nil {
		return fmt.Errorf("parse write-set: %w", err)
	}
	if err := r.VerifyChecksum(); err != nil {
		return fmt.Errorf("verify checksum: %w", err)
	}
	data, err := r.Data()
	if err != nil {
		return fmt.Errorf("read data-set: %w", err)
	}

	report := dumpReport{
		HeaderSize:     writeset.HeaderSize,
		Flags:          r.Header.Flags,
		Certified:      r.Header.Certified(),
		LastSeen:       r.Header.LastSeen,
		Timestamp:      r.Header.Timestamp,
		ConnID:         r.Header.ConnID,
		TrxID:          r.Header.TrxID,
		KeySetVersion:  r.Header.KeySetVersion,
		DataSetVersion: r.Header.DataSetVersion,
		DataRecords:    data.Count(),
	}
	enc := json.NewEncoder(ctx.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// viewStateReport is the JSON shape printed by the "viewstate" subcommand.
type viewStateReport struct {
	MyUUID    string           `json:"my_uuid"`
	ViewType  string           `json:"view_type"`
	ViewUUID  string           `json:"view_uuid"`
	ViewSeq   int64            `json:"view_seq"`
	Bootstrap bool             `json:"bootstrap"`
	Members   []viewStateEntry `json:"members"`
}

type viewStateEntry struct {
	UUID      string `json:"uuid"`
	SegmentID int    `json:"segment_id"`
}

// RunViewState reads gvwstate.dat under baseDir and prints it as JSON.
func RunViewState(ctx *Context, baseDir string) error {
	vs, err := viewstate.ReadFile(baseDir)
	if err != nil {
		return fmt.Errorf("read view state: %w", err)
	}
	report := viewStateReport{
		MyUUID:    vs.MyUUID.String(),
		ViewType:  string(vs.View.Type),
		ViewUUID:  vs.View.UUID.String(),
		ViewSeq:   vs.View.Seq,
		Bootstrap: vs.Bootstrap,
	}
	for _, m := range vs.Members {
		report.Members = append(report.Members, viewStateEntry{UUID: m.UUID.String(), SegmentID: m.SegmentID})
	}
	enc := json.NewEncoder(ctx.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// RunBootstrapViewState writes a fresh single-member gvwstate.dat under
// baseDir, useful for seeding a first node's on-disk state.
func RunBootstrapViewState(ctx *Context, baseDir string) error {
	self := uuid.New()
	vs := viewstate.ViewState{
		MyUUID:    self,
		View:      viewstate.ViewID{Type: 'P', UUID: self, Seq: 0},
		Bootstrap: true,
		Members:   []viewstate.Member{{UUID: self, SegmentID: 0}},
	}
	if err := viewstate.WriteFile(baseDir, vs); err != nil {
		return fmt.Errorf("write view state: %w", err)
	}
	fmt.Fprintf(ctx.Stdout, "bootstrapped %s as %s\n", viewstate.Path(baseDir), self)
	return nil
}

