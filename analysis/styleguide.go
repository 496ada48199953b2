package analysis

import (
	"slices"
	"strings"
)

var styleGuideIDs = map[string]string{
	"ap":        "01971e03-dd27-75ee-9044-b48e654848cf",
	"chicago":   "01971e03-dd27-77d8-a6fa-5edb6a1f4ad2",
	"microsoft": "01971e03-dd27-779f-b3ec-b724a2cf809f",
}

// ResolveStyleGuide maps a known style guide name to its remote identifier.
// Unknown values are returned unchanged so custom guide ids pass through.
func ResolveStyleGuide(ref string) string {
	if id, ok := styleGuideIDs[strings.ToLower(strings.TrimSpace(ref))]; ok {
		return id
	}
	return ref
}

// StyleGuideNames returns the known style guide names.
func StyleGuideNames() []string {
	return []string{"ap", "chicago", "microsoft"}
}

// Dialects accepted by the remote service.
var Dialects = []string{
	"american_english",
	"british_oxford",
	"canadian_english",
}

// Tones accepted by the remote service.
var Tones = []string{
	"academic",
	"business",
	"casual",
	"conversational",
	"formal",
	"gen-z",
	"informal",
	"technical",
}

// ValidDialect reports whether d is a known dialect.
func ValidDialect(d string) bool {
	return slices.Contains(Dialects, d)
}

// ValidTone reports whether t is a known tone.
func ValidTone(t string) bool {
	return slices.Contains(Tones, t)
}
