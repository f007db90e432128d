package config

import (
	"testing"

	"github.com/codership/galera-sub007/checksum"
	"github.com/codership/galera-sub007/wsrep/keyset"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("DefaultConfig(): %v", err)
	}
}

func TestFromMapOverridesDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"socket.checksum":      "1",
		"socket.recv_buf_size": "auto",
		"socket.send_buf_size": "65536",
		"repl.key_format":      "FLAT16A",
		"repl.max_ws_size":     "1048576",
		"repl.proto_max":       "4",
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if cfg.SocketChecksum != checksum.KindCRC32 {
		t.Fatalf("SocketChecksum = %v, want CRC32", cfg.SocketChecksum)
	}
	if !cfg.SocketRecvBuf.Auto {
		t.Fatalf("SocketRecvBuf = %+v, want auto", cfg.SocketRecvBuf)
	}
	if cfg.SocketSendBuf.Auto || cfg.SocketSendBuf.Bytes != 65536 {
		t.Fatalf("SocketSendBuf = %+v, want 65536", cfg.SocketSendBuf)
	}
	if cfg.KeyFormat != keyset.FLAT16A {
		t.Fatalf("KeyFormat = %v, want FLAT16A", cfg.KeyFormat)
	}
	if cfg.MaxWriteSetSize != 1048576 {
		t.Fatalf("MaxWriteSetSize = %d, want 1048576", cfg.MaxWriteSetSize)
	}
	if cfg.ProtocolMax != 4 {
		t.Fatalf("ProtocolMax = %d, want 4", cfg.ProtocolMax)
	}
}

func TestFromMapRejectsInvalidChecksum(t *testing.T) {
	if _, err := FromMap(map[string]string{"socket.checksum": "9"}); err == nil {
		t.Fatalf("expected rejection of an out-of-range socket.checksum")
	}
}

func TestFromMapRejectsInvalidKeyFormat(t *testing.T) {
	if _, err := FromMap(map[string]string{"repl.key_format": "FLAT32"}); err == nil {
		t.Fatalf("expected rejection of an unknown repl.key_format")
	}
}

func TestValidateRejectsProtoMaxOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProtocolMax = 6
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected rejection of repl.proto_max=6")
	}
}

func TestParseBufSizeRejectsNonPositive(t *testing.T) {
	if _, err := ParseBufSize("0"); err == nil {
		t.Fatalf("expected rejection of buffer size 0")
	}
	if _, err := ParseBufSize("-1"); err == nil {
		t.Fatalf("expected rejection of a negative buffer size")
	}
}
