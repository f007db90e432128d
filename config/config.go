// Package config models the key-value configuration the external
// collaborator injects into the replication core (spec.md §6):
// socket checksum selection, buffer sizing, key format, and the
// write-set/protocol ceilings. Grounded directly on node/config.go's
// Config/DefaultConfig/ValidateConfig shape.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/codership/galera-sub007/checksum"
	"github.com/codership/galera-sub007/wsrep/keyset"
)

// BufSize is socket.recv_buf_size/socket.send_buf_size: either a fixed
// byte count or "auto", left to the OS default.
type BufSize struct {
	Auto  bool
	Bytes int
}

// Config is the full set of values the core consumes from the
// external collaborator's key->value map.
type Config struct {
	SocketChecksum  checksum.Kind
	SocketRecvBuf   BufSize
	SocketSendBuf   BufSize
	KeyFormat       keyset.Format
	MaxWriteSetSize int
	ProtocolMax     int
	MaxSendQBytes   int
}

// DefaultConfig returns the core's defaults: CRC-32C checksums, OS-sized
// socket buffers, FLAT8 keys, a 2GiB write-set ceiling, protocol 5, and
// the §4.9 32MiB send-queue bound.
func DefaultConfig() Config {
	return Config{
		SocketChecksum:  checksum.KindCRC32C,
		SocketRecvBuf:   BufSize{Auto: true},
		SocketSendBuf:   BufSize{Auto: true},
		KeyFormat:       keyset.FLAT8,
		MaxWriteSetSize: 2 << 30,
		ProtocolMax:     5,
		MaxSendQBytes:   32 << 20,
	}
}

// ParseBufSize parses "auto" or an integer byte count.
func ParseBufSize(raw string) (BufSize, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "auto") {
		return BufSize{Auto: true}, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return BufSize{}, fmt.Errorf("config: invalid buffer size %q: %w", raw, err)
	}
	if n <= 0 {
		return BufSize{}, fmt.Errorf("config: buffer size must be > 0, got %d", n)
	}
	return BufSize{Bytes: n}, nil
}

// ParseSocketChecksum maps socket.checksum's {0,1,2} to a checksum.Kind.
func ParseSocketChecksum(raw string) (checksum.Kind, error) {
	switch strings.TrimSpace(raw) {
	case "0":
		return checksum.KindNone, nil
	case "1":
		return checksum.KindCRC32, nil
	case "2":
		return checksum.KindCRC32C, nil
	default:
		return 0, fmt.Errorf("config: socket.checksum must be one of {0,1,2}, got %q", raw)
	}
}

// ParseKeyFormat maps repl.key_format's name to a keyset.Format.
func ParseKeyFormat(raw string) (keyset.Format, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "FLAT8":
		return keyset.FLAT8, nil
	case "FLAT8A":
		return keyset.FLAT8A, nil
	case "FLAT16":
		return keyset.FLAT16, nil
	case "FLAT16A":
		return keyset.FLAT16A, nil
	default:
		return 0, fmt.Errorf("config: repl.key_format must be one of {FLAT8,FLAT8A,FLAT16,FLAT16A}, got %q", raw)
	}
}

// FromMap builds a Config from the external collaborator's key->value
// map, starting from DefaultConfig for any key left unset.
func FromMap(m map[string]string) (Config, error) {
	cfg := DefaultConfig()
	if v, ok := m["socket.checksum"]; ok {
		kind, err := ParseSocketChecksum(v)
		if err != nil {
			return Config{}, err
		}
		cfg.SocketChecksum = kind
	}
	if v, ok := m["socket.recv_buf_size"]; ok {
		b, err := ParseBufSize(v)
		if err != nil {
			return Config{}, err
		}
		cfg.SocketRecvBuf = b
	}
	if v, ok := m["socket.send_buf_size"]; ok {
		b, err := ParseBufSize(v)
		if err != nil {
			return Config{}, err
		}
		cfg.SocketSendBuf = b
	}
	if v, ok := m["repl.key_format"]; ok {
		f, err := ParseKeyFormat(v)
		if err != nil {
			return Config{}, err
		}
		cfg.KeyFormat = f
	}
	if v, ok := m["repl.max_ws_size"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("config: repl.max_ws_size: %w", err)
		}
		cfg.MaxWriteSetSize = n
	}
	if v, ok := m["repl.proto_max"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("config: repl.proto_max: %w", err)
		}
		cfg.ProtocolMax = n
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg's invariants: positive sizes, a protocol ceiling
// within the supported VER3-5 range (spec.md §3's MinVersion/MaxVersion).
func Validate(cfg Config) error {
	if cfg.MaxWriteSetSize <= 0 {
		return errors.New("config: repl.max_ws_size must be > 0")
	}
	if cfg.ProtocolMax < 3 || cfg.ProtocolMax > 5 {
		return fmt.Errorf("config: repl.proto_max must be in [3,5], got %d", cfg.ProtocolMax)
	}
	if !cfg.SocketRecvBuf.Auto && cfg.SocketRecvBuf.Bytes <= 0 {
		return errors.New("config: socket.recv_buf_size must be > 0 or \"auto\"")
	}
	if !cfg.SocketSendBuf.Auto && cfg.SocketSendBuf.Bytes <= 0 {
		return errors.New("config: socket.send_buf_size must be > 0 or \"auto\"")
	}
	if cfg.MaxSendQBytes <= 0 {
		return errors.New("config: max_send_q_bytes must be > 0")
	}
	return nil
}
