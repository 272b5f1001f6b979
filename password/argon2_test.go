package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()

	// Low-cost parameters keep the test suite fast; still above the floors.
	h, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected PHC prefix: %q", encoded)
	}

	match, err := h.Verify("correct horse battery", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !match {
		t.Fatal("password does not verify against its own hash")
	}

	match, err = h.Verify("wrong horse battery", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if match {
		t.Fatal("wrong password verified")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	h := testHasher(t)

	first, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestHashAcceptsAnyLength(t *testing.T) {
	h := testHasher(t)

	// Strength policy is the caller's concern, not the hasher's.
	for _, password := range []string{"", "a", "pw1", strings.Repeat("x", 256)} {
		encoded, err := h.Hash(password)
		if err != nil {
			t.Fatalf("Hash(%q) failed: %v", password, err)
		}
		match, err := h.Verify(password, encoded)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if !match {
			t.Fatalf("password %q does not verify", password)
		}
	}
}

func TestVerifyRejectsMalformedPHC(t *testing.T) {
	h := testHasher(t)

	malformed := []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=1,p=4$",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$%%%$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$%%%",
	}
	for _, encoded := range malformed {
		if _, err := h.Verify("any-password", encoded); err == nil {
			t.Fatalf("malformed hash accepted: %q", encoded)
		}
	}
}

func TestNewHasherValidation(t *testing.T) {
	valid := DefaultConfig()
	if _, err := NewHasher(valid); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"low memory", func(c *Config) { c.Memory = 1024 }},
		{"zero time", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if _, err := NewHasher(cfg); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

func TestVerifyAcceptsForeignCostParameters(t *testing.T) {
	// A hash produced under different cost parameters still verifies: the
	// parameters travel inside the PHC string.
	producer, err := NewHasher(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	encoded, err := producer.Hash("portable-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	match, err := testHasher(t).Verify("portable-password", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !match {
		t.Fatal("hash with foreign cost parameters rejected")
	}
}
