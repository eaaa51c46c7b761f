// Package scraper implements marketplace listing acquisition: it drives a
// headless Chrome session against the regional classifieds site, extracts
// search result rows and detail pages, and normalizes them into candidates.
package scraper

// postalRegions maps the leading 3 digits of a US ZIP code to the
// marketplace's regional subdomain. Unmapped prefixes fall back to
// defaultRegion.
var postalRegions = map[string]string{
	// SF Bay Area
	"940": "sfbay", "941": "sfbay", "943": "sfbay", "944": "sfbay",
	"945": "sfbay", "946": "sfbay", "947": "sfbay", "948": "sfbay",
	"949": "sfbay", "950": "sfbay", "951": "sfbay",
	// Los Angeles
	"900": "losangeles", "901": "losangeles", "902": "losangeles",
	"903": "losangeles", "904": "losangeles", "905": "losangeles",
	"906": "losangeles", "907": "losangeles", "908": "losangeles",
	"910": "losangeles", "911": "losangeles", "912": "losangeles",
	"913": "losangeles", "914": "losangeles", "915": "losangeles",
	"916": "losangeles", "917": "losangeles", "918": "losangeles",
	// San Diego
	"919": "sandiego", "920": "sandiego", "921": "sandiego",
	// Sacramento
	"956": "sacramento", "957": "sacramento", "958": "sacramento",
	// New York
	"100": "newyork", "101": "newyork", "102": "newyork",
	"103": "newyork", "104": "newyork", "110": "newyork",
	"111": "newyork", "112": "newyork", "113": "newyork", "114": "newyork",
	// Boston
	"021": "boston", "022": "boston", "024": "boston",
	// Philadelphia
	"190": "philadelphia", "191": "philadelphia",
	// Washington DC
	"200": "washingtondc", "202": "washingtondc", "203": "washingtondc",
	"220": "washingtondc", "222": "washingtondc",
	// Atlanta
	"300": "atlanta", "301": "atlanta", "303": "atlanta",
	// Miami
	"330": "miami", "331": "miami", "332": "miami", "333": "miami",
	// Chicago
	"606": "chicago", "607": "chicago", "608": "chicago",
	// Dallas
	"750": "dallas", "751": "dallas", "752": "dallas", "753": "dallas",
	// Houston
	"770": "houston", "772": "houston", "773": "houston", "774": "houston",
	// Austin
	"786": "austin", "787": "austin",
	// Phoenix
	"850": "phoenix", "852": "phoenix", "853": "phoenix",
	// Las Vegas
	"889": "lasvegas", "890": "lasvegas", "891": "lasvegas",
	// Denver
	"800": "denver", "801": "denver", "802": "denver", "803": "denver",
	// Portland
	"970": "portland", "971": "portland", "972": "portland",
	// Seattle
	"980": "seattle", "981": "seattle", "982": "seattle", "983": "seattle",
}

const defaultRegion = "sfbay"

// RegionForPostal returns the regional subdomain for a postal code,
// defaulting when the 3-digit prefix is unmapped.
func RegionForPostal(postal string) string {
	if len(postal) >= 3 {
		if region, ok := postalRegions[postal[:3]]; ok {
			return region
		}
	}
	return defaultRegion
}
