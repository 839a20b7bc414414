package attributes

// Clearance is a canonical clearance level. The zero value is not valid; raw
// partner vocabularies are mapped to these constants by the normalizer.
type Clearance string

const (
	ClearanceUnclassified Clearance = "UNCLASSIFIED"
	ClearanceConfidential Clearance = "CONFIDENTIAL"
	ClearanceSecret       Clearance = "SECRET"
	ClearanceTopSecret    Clearance = "TOP_SECRET"
)

// clearanceRank defines the total order over clearance levels.
var clearanceRank = map[Clearance]int{
	ClearanceUnclassified: 0,
	ClearanceConfidential: 1,
	ClearanceSecret:       2,
	ClearanceTopSecret:    3,
}

// Valid reports whether c is one of the canonical clearance levels.
func (c Clearance) Valid() bool {
	_, ok := clearanceRank[c]
	return ok
}

// Rank returns the ordinal position of c, or -1 for an invalid level.
func (c Clearance) Rank() int {
	rank, ok := clearanceRank[c]
	if !ok {
		return -1
	}
	return rank
}

// Covers reports whether a subject holding clearance c may access material
// classified at level other. Both levels must be valid.
func (c Clearance) Covers(other Clearance) bool {
	if !c.Valid() || !other.Valid() {
		return false
	}
	return clearanceRank[c] >= clearanceRank[other]
}

// Clearances returns the canonical levels in ascending order.
func Clearances() []Clearance {
	return []Clearance{
		ClearanceUnclassified,
		ClearanceConfidential,
		ClearanceSecret,
		ClearanceTopSecret,
	}
}
