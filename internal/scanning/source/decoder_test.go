package source

import "testing"

func TestTopicToAddress(t *testing.T) {
	addr, err := topicToAddress("0x000000000000000000000000BD6C7B0d2f68c2b7805d88388319cFB6EcB50eA9")
	if err != nil {
		t.Fatalf("topicToAddress failed: %v", err)
	}
	if addr != "0xbd6c7b0d2f68c2b7805d88388319cfb6ecb50ea9" {
		t.Errorf("unexpected address %s", addr)
	}

	if _, err := topicToAddress("0x1234"); err == nil {
		t.Error("expected error for short topic")
	}
}

func TestDecodeFeeWords(t *testing.T) {
	data := "0x" +
		"0000000000000000000000000000000000000000000000000de0b6b3a7640000" +
		"00000000000000000000000000000000000000000000000000038d7ea4c68000"

	integrator, platform, err := decodeFeeWords(data)
	if err != nil {
		t.Fatalf("decodeFeeWords failed: %v", err)
	}
	if integrator != "1000000000000000000" {
		t.Errorf("integrator fee = %s, want 1e18", integrator)
	}
	if platform != "1000000000000000" {
		t.Errorf("platform fee = %s, want 1e15", platform)
	}

	if _, _, err := decodeFeeWords("0xdead"); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestParseHexUint(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0x0", 0, true},
		{"0x1f4", 500, true},
		{"0xFF", 255, true},
		{"0x", 0, false},
		{"0xzz", 0, false},
		{"0x10000000000000000", 0, false}, // 2^64
	}

	for _, tt := range tests {
		got, err := parseHexUint(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("parseHexUint(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("parseHexUint(%q) expected error", tt.in)
		}
	}
}
