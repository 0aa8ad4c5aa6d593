package access

import "strings"

// Category values with a fixed meaning to the policy
const (
	CategoryParking   = "parking"
	CategoryTrailhead = "trailhead"
	CategoryMountain  = "mountain"
)

// Tag keys read by the policy
const (
	TagCarDirect = "car_direct"
	TagAccess    = "access"
)

// Verdict is the outcome of a single rule
type Verdict int

const (
	NoOpinion Verdict = iota // rule does not apply, fall through
	Direct                   // reachable by vehicle
	Transfer                 // requires an access point transfer
)

// Rule is one row of the decision table
type Rule struct {
	Name   string
	Decide func(category string, tags map[string]string) Verdict
}

var (
	vehicleAccessValues = map[string]bool{
		"car":   true,
		"drive": true,
		"road":  true,
		"차량":    true,
		"도로":    true,
	}
	footAccessValues = map[string]bool{
		"foot":  true,
		"trail": true,
		"hike":  true,
		"도보":    true,
		"등산로":   true,
		"탐방로":   true,
	}
)

// Rules is the ordered decision table. The first rule with an opinion wins;
// explicit tags outrank category, and category outranks generic access hints.
var Rules = []Rule{
	{Name: "car_direct_override", Decide: carDirectOverride},
	{Name: "transfer_point_category", Decide: transferPointCategory},
	{Name: "mountain_category", Decide: mountainCategory},
	{Name: "access_hint", Decide: accessHint},
}

// IsDirectlyVehicleAccessible reports whether a destination can be driven to
// directly. It is total: a nil tag map and unknown categories are fine, and the
// fallback when no rule has an opinion is true.
func IsDirectlyVehicleAccessible(category string, tags map[string]string) bool {
	accessible, _ := Evaluate(category, tags)
	return accessible
}

// Evaluate is IsDirectlyVehicleAccessible plus the name of the rule that decided,
// or "default" when the permissive fallback applied
func Evaluate(category string, tags map[string]string) (bool, string) {
	category = normalize(category)
	for _, rule := range Rules {
		switch rule.Decide(category, tags) {
		case Direct:
			return true, rule.Name
		case Transfer:
			return false, rule.Name
		}
	}
	return true, "default"
}

func carDirectOverride(_ string, tags map[string]string) Verdict {
	switch normalize(tags[TagCarDirect]) {
	case "yes", "true", "1":
		return Direct
	case "no", "false", "0":
		return Transfer
	}
	return NoOpinion
}

func transferPointCategory(category string, _ map[string]string) Verdict {
	if category == CategoryParking || category == CategoryTrailhead {
		return Direct
	}
	return NoOpinion
}

func mountainCategory(category string, _ map[string]string) Verdict {
	if category == CategoryMountain {
		return Transfer
	}
	return NoOpinion
}

func accessHint(_ string, tags map[string]string) Verdict {
	value := normalize(tags[TagAccess])
	switch {
	case vehicleAccessValues[value]:
		return Direct
	case footAccessValues[value]:
		return Transfer
	}
	return NoOpinion
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
