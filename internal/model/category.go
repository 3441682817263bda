package model

// CRISP assessment categories, in the order a session walks through them.
const (
	CategoryCommunity       = "community"
	CategoryRespect         = "respect"
	CategoryIntegrity       = "integrity"
	CategoryService         = "service"
	CategoryProfessionalism = "professionalism"
)

// Categories is the fixed CRISP progression order.
var Categories = []string{
	CategoryCommunity,
	CategoryRespect,
	CategoryIntegrity,
	CategoryService,
	CategoryProfessionalism,
}

// IsCategory reports whether c is one of the CRISP categories.
func IsCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// NextCategory returns the first category after current that appears in
// available, or "" when none is left. An empty current starts from the top.
func NextCategory(current string, available map[string]bool) string {
	start := 0
	if current != "" {
		start = -1
		for i, c := range Categories {
			if c == current {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return ""
		}
	}
	for _, c := range Categories[start:] {
		if available[c] {
			return c
		}
	}
	return ""
}
