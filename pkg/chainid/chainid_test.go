package chainid

import "testing"

func TestNumericBijection(t *testing.T) {
	for _, id := range []ChainId{EthereumMainnet, EthereumSepolia, StarknetMainnet, StarknetSepolia} {
		n, err := id.Numeric()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", id, err)
		}
		back, err := FromNumeric(n)
		if err != nil {
			t.Fatalf("%s: FromNumeric(%d): unexpected error: %v", id, n, err)
		}
		if back != id {
			t.Errorf("%s: round trip got %s", id, back)
		}
	}
}

func TestNumericUnknownChain(t *testing.T) {
	if _, err := ChainId("NOT_A_CHAIN").Numeric(); err == nil {
		t.Error("expected error for unknown chain")
	}
}

func TestFromNumericUnknown(t *testing.T) {
	if _, err := FromNumeric(999999); err == nil {
		t.Error("expected error for unknown numeric chain-id")
	}
}

func TestPlatform(t *testing.T) {
	cases := []struct {
		id   ChainId
		want Platform
	}{
		{EthereumMainnet, PlatformEVM},
		{EthereumSepolia, PlatformEVM},
		{StarknetMainnet, PlatformStarknet},
		{StarknetSepolia, PlatformStarknet},
	}
	for _, c := range cases {
		got, err := c.id.Platform()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.id, err)
		}
		if got != c.want {
			t.Errorf("%s: got %s, want %s", c.id, got, c.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !EthereumSepolia.IsValid() {
		t.Error("expected EthereumSepolia to be valid")
	}
	if ChainId("GARBAGE").IsValid() {
		t.Error("expected GARBAGE to be invalid")
	}
}
