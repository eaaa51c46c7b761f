package scraper

import "strings"

// categoryKeywords maps query keywords to marketplace category codes.
// Matching is a case-insensitive substring check in declaration order, so
// more specific keywords sit above generic ones. Queries matching nothing
// land in the generic "for sale" category.
var categoryKeywords = []struct {
	keyword string
	code    string
}{
	{"bicycle", "bia"}, {"bike", "bia"},
	{"motorcycle", "mca"}, {"scooter", "mca"},
	{"truck", "cta"}, {"car", "cta"}, {"suv", "cta"},
	{"boat", "boo"},
	{"laptop", "sya"}, {"computer", "sya"}, {"monitor", "sya"}, {"desktop", "sya"},
	{"phone", "moa"}, {"iphone", "moa"}, {"android", "moa"},
	{"tv", "ela"}, {"television", "ela"}, {"camera", "ela"},
	{"speaker", "ela"}, {"headphone", "ela"}, {"stereo", "ela"},
	{"couch", "fua"}, {"sofa", "fua"}, {"table", "fua"}, {"chair", "fua"},
	{"dresser", "fua"}, {"desk", "fua"}, {"furniture", "fua"},
	{"guitar", "msa"}, {"piano", "msa"}, {"drum", "msa"}, {"amplifier", "msa"},
	{"kayak", "sga"}, {"surfboard", "sga"}, {"snowboard", "sga"},
	{"skis", "sga"}, {"golf", "sga"},
	{"washer", "ppa"}, {"dryer", "ppa"}, {"fridge", "ppa"}, {"refrigerator", "ppa"},
	{"tool", "tla"}, {"saw", "tla"}, {"drill", "tla"},
}

// defaultCategory is the site-wide "for sale" category.
const defaultCategory = "sss"

// CategoryForQuery maps a free-text query to a marketplace category code.
func CategoryForQuery(query string) string {
	q := strings.ToLower(query)
	for _, c := range categoryKeywords {
		if strings.Contains(q, c.keyword) {
			return c.code
		}
	}
	return defaultCategory
}
