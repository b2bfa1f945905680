/*
@Description: FEC scheme descriptors - the closed set of wire-stable scheme tokens
*/

package sonicwave

// FECScheme is an immutable descriptor for one forward-error-correction
// family (§3 "FEC scheme"). The name field is the wire token carried in the
// START packet's F{SCHEME} flag and MUST be preserved exactly for wire
// compatibility - never rename an existing entry.
type FECScheme struct {
	Name        string
	GroupSize   int
	ParityCount int
	Overlap     bool
	// rsClean selects the klauspost/reedsolomon-backed recovery path
	// (§4.6) instead of the XOR/weighted-XOR algebra of §4.2. It is its
	// own orthogonal axis from Overlap; RS_CLEAN never overlaps.
	rsClean bool
}

var (
	fecSchemeNone = FECScheme{Name: "NONE", GroupSize: 0, ParityCount: 0}

	fecSchemeBasic2 = FECScheme{Name: "BASIC_2", GroupSize: 2, ParityCount: 1}
	fecSchemeBasic4 = FECScheme{Name: "BASIC_4", GroupSize: 4, ParityCount: 1}

	fecSchemeOverlapping3       = FECScheme{Name: "OVERLAPPING_3", GroupSize: 3, ParityCount: 1, Overlap: true}
	fecSchemeStrongOverlapping3 = FECScheme{Name: "STRONG_OVERLAPPING_3", GroupSize: 3, ParityCount: 3, Overlap: true}

	// fecSchemeRSClean is the open-variant addition of SPEC_FULL.md §4.6:
	// a real Reed-Solomon code, selected explicitly, never implied by
	// default so the mandated schemes' wire behaviour is untouched.
	fecSchemeRSClean = FECScheme{Name: "RS_CLEAN", GroupSize: 8, ParityCount: 3, rsClean: true}
)

// defaultFECScheme is used whenever a START's F token is absent or unknown
// (§4.4 "resolve to a known scheme or the default").
var defaultFECScheme = fecSchemeStrongOverlapping3

// knownFECSchemes indexes every registered scheme by wire token.
var knownFECSchemes = map[string]FECScheme{
	fecSchemeNone.Name:                fecSchemeNone,
	fecSchemeBasic2.Name:              fecSchemeBasic2,
	fecSchemeBasic4.Name:              fecSchemeBasic4,
	fecSchemeOverlapping3.Name:        fecSchemeOverlapping3,
	fecSchemeStrongOverlapping3.Name:  fecSchemeStrongOverlapping3,
	fecSchemeRSClean.Name:             fecSchemeRSClean,
}

// resolveFECScheme looks up a scheme token, falling back to the default for
// anything unrecognised (§4.4, §7 "START with unknown FEC token -> Recover").
func resolveFECScheme(token string) FECScheme {
	if s, ok := knownFECSchemes[token]; ok {
		return s
	}
	return defaultFECScheme
}

// ResolveFECSchemeName is the exported form of resolveFECScheme, for
// callers (the CLI demo, tests in other packages) that only have the wire
// token string.
func ResolveFECSchemeName(token string) FECScheme {
	return resolveFECScheme(token)
}
