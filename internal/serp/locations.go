package serp

import "strings"

// countryCodes maps lowercase country names to the two-letter codes search
// APIs accept for geo targeting.
var countryCodes = map[string]string{
	"argentina":            "ar",
	"australia":            "au",
	"austria":              "at",
	"belgium":              "be",
	"brazil":               "br",
	"canada":               "ca",
	"chile":                "cl",
	"china":                "cn",
	"colombia":             "co",
	"czech republic":       "cz",
	"czechia":              "cz",
	"denmark":              "dk",
	"egypt":                "eg",
	"finland":              "fi",
	"france":               "fr",
	"germany":              "de",
	"greece":               "gr",
	"hong kong":            "hk",
	"hungary":              "hu",
	"india":                "in",
	"indonesia":            "id",
	"ireland":              "ie",
	"israel":               "il",
	"italy":                "it",
	"japan":                "jp",
	"kenya":                "ke",
	"malaysia":             "my",
	"mexico":               "mx",
	"netherlands":          "nl",
	"new zealand":          "nz",
	"nigeria":              "ng",
	"norway":               "no",
	"pakistan":             "pk",
	"peru":                 "pe",
	"philippines":          "ph",
	"poland":               "pl",
	"portugal":             "pt",
	"romania":              "ro",
	"russia":               "ru",
	"saudi arabia":         "sa",
	"singapore":            "sg",
	"south africa":         "za",
	"south korea":          "kr",
	"korea":                "kr",
	"spain":                "es",
	"sweden":               "se",
	"switzerland":          "ch",
	"taiwan":               "tw",
	"thailand":             "th",
	"turkey":               "tr",
	"ukraine":              "ua",
	"united arab emirates": "ae",
	"uae":                  "ae",
	"united kingdom":       "gb",
	"uk":                   "gb",
	"great britain":        "gb",
	"united states":        "us",
	"usa":                  "us",
	"us":                   "us",
	"vietnam":              "vn",
}

// CountryCode maps a location name to its two-letter code. Names are matched
// case-insensitively; any other input, two-letter codes included, passes
// through unchanged apart from surrounding whitespace.
func CountryCode(location string) string {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return ""
	}
	if code, ok := countryCodes[strings.ToLower(loc)]; ok {
		return code
	}
	return loc
}
