package sonicwave

import "testing"

func TestResolveFECSchemeKnownAndUnknown(t *testing.T) {
	if got := resolveFECScheme("BASIC_2"); got.Name != "BASIC_2" {
		t.Errorf("resolveFECScheme(BASIC_2) = %+v", got)
	}
	if got := resolveFECScheme("NOT_A_REAL_SCHEME"); got.Name != defaultFECScheme.Name {
		t.Errorf("unknown scheme should fall back to default, got %+v", got)
	}
	if got := resolveFECScheme(""); got.Name != defaultFECScheme.Name {
		t.Errorf("empty scheme token should fall back to default, got %+v", got)
	}
}

func TestSchemeTokensAreStable(t *testing.T) {
	// §3: "Implementations MUST preserve these exact tokens for wire
	// compatibility." Locking them in as a regression guard.
	want := map[string]FECScheme{
		"NONE":                 fecSchemeNone,
		"BASIC_2":              fecSchemeBasic2,
		"BASIC_4":              fecSchemeBasic4,
		"OVERLAPPING_3":        fecSchemeOverlapping3,
		"STRONG_OVERLAPPING_3": fecSchemeStrongOverlapping3,
		"RS_CLEAN":             fecSchemeRSClean,
	}
	for name, scheme := range want {
		if scheme.Name != name {
			t.Errorf("scheme token changed: %+v", scheme)
		}
		if knownFECSchemes[name].Name != name {
			t.Errorf("knownFECSchemes missing entry for %q", name)
		}
	}
}
