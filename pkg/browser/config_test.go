package browser

import "testing"

func TestSignature_StableAcrossFieldOrder(t *testing.T) {
	a := Config{
		Engine:         EngineChromium,
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		Cookies: []Cookie{
			{Name: "b", Value: "2"},
			{Name: "a", Value: "1"},
		},
		ExtraArgs: []string{"zeta", "alpha"},
	}
	b := Config{
		Engine:         EngineChromium,
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		Cookies: []Cookie{
			{Name: "a", Value: "1"},
			{Name: "b", Value: "2"},
		},
		ExtraArgs: []string{"alpha", "zeta"},
	}

	if Signature(a) != Signature(b) {
		t.Fatalf("expected signatures to match regardless of slice order, got %q vs %q", Signature(a), Signature(b))
	}
}

func TestSignature_DiffersOnMeaningfulChange(t *testing.T) {
	base := DefaultConfig()
	changed := DefaultConfig()
	changed.Headless = false

	if Signature(base) == Signature(changed) {
		t.Fatal("expected different signatures for different headless flags")
	}
}

func TestSignature_GooglebotAffectsResolvedUserAgent(t *testing.T) {
	plain := DefaultConfig()
	googlebot := DefaultConfig()
	googlebot.Googlebot = true

	if Signature(plain) == Signature(googlebot) {
		t.Fatal("expected googlebot override to change the signature via resolvedUserAgent")
	}
}

func TestDefaultConfig_IsPermanentSignatureBasis(t *testing.T) {
	sig1 := Signature(DefaultConfig())
	sig2 := Signature(DefaultConfig())
	if sig1 != sig2 {
		t.Fatal("DefaultConfig() should be deterministic")
	}
	if len(sig1) != 40 {
		t.Fatalf("expected a 40-char hex SHA1 digest, got %d chars", len(sig1))
	}
}

func TestTTLForMemoryPercent(t *testing.T) {
	cases := []struct {
		name string
		pct  float64
		want tierTTL
	}{
		{"high pressure", 85, pressureHigh},
		{"boundary high", 80.01, pressureHigh},
		{"medium pressure", 70, pressureMedium},
		{"boundary medium", 60.01, pressureMedium},
		{"low pressure", 10, pressureLow},
		{"boundary low", 60, pressureLow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ttlForMemoryPercent(tc.pct)
			if got != tc.want {
				t.Errorf("ttlForMemoryPercent(%v) = %+v, want %+v", tc.pct, got, tc.want)
			}
		})
	}
}
