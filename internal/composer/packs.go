package composer

import "strings"

// industryPacks override the base prompt for tenants that have not customized
// it. The pack text carries domain vocabulary the generic default lacks.
var industryPacks = map[string]string{
	"landscaping": "Produce a realistic \"after\" visualization of the finished landscaping work: healthy plantings, defined bed edges, fresh mulch and a maintained lawn. Keep hardscape, structures and property lines exactly as photographed.",
	"painting":    "Produce a realistic \"after\" visualization of the freshly painted surfaces with clean lines and uniform coverage. Keep trim, fixtures and the surrounding scene exactly as photographed.",
	"roofing":     "Produce a realistic \"after\" visualization of the completed roof: new material laid evenly, straight courses, intact flashing. Keep the building shape, skyline and surroundings exactly as photographed.",
	"cleaning":    "Produce a realistic \"after\" visualization of the same space fully cleaned: clear surfaces, no stains or debris, original furnishings in place.",
}

// IndustryPack returns the override prompt for the industry, or "" when no
// pack exists.
func IndustryPack(industry string) string {
	return industryPacks[strings.ToLower(strings.TrimSpace(industry))]
}
