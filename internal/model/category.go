package model

import "sort"

// Category identifies one class of cleanable files. The set is closed;
// tokens here are the only values accepted on the public interface.
type Category string

const (
	CategoryUserCaches    Category = "userCaches"
	CategoryAppCaches     Category = "appCaches"
	CategoryDeveloperJunk Category = "developerJunk"
	CategoryNodeModules   Category = "nodeModules"
	CategoryXcodeJunk     Category = "xcodeJunk"
	CategoryTrash         Category = "trash"
	CategoryLogs          Category = "logs"
	CategoryTemporary     Category = "temporary"
	CategoryDuplicates    Category = "duplicates"

	// Meta tokens accepted on the CLI; expanded before scanning.
	CategoryTokenSafe = "safe"
	CategoryTokenAll  = "all"
)

// AllCategories is the full closed set, in stable order.
var AllCategories = []Category{
	CategoryUserCaches,
	CategoryAppCaches,
	CategoryDeveloperJunk,
	CategoryNodeModules,
	CategoryXcodeJunk,
	CategoryTrash,
	CategoryLogs,
	CategoryTemporary,
	CategoryDuplicates,
}

// SafeCategories is the "safe" preset, a strict subset of AllCategories.
var SafeCategories = []Category{
	CategoryUserCaches,
	CategoryAppCaches,
	CategoryLogs,
	CategoryTrash,
}

// ValidCategory reports whether c is a member of the closed set.
func ValidCategory(c Category) bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ExpandCategoryTokens resolves CLI tokens (including "safe" and "all")
// into a deduplicated, sorted category slice. Unknown tokens are returned
// in the second value; the caller decides whether that is fatal.
func ExpandCategoryTokens(tokens []string) ([]Category, []string) {
	set := make(map[Category]struct{})
	var unknown []string
	for _, tok := range tokens {
		switch tok {
		case CategoryTokenAll:
			for _, c := range AllCategories {
				set[c] = struct{}{}
			}
		case CategoryTokenSafe:
			for _, c := range SafeCategories {
				set[c] = struct{}{}
			}
		default:
			if ValidCategory(Category(tok)) {
				set[Category(tok)] = struct{}{}
			} else {
				unknown = append(unknown, tok)
			}
		}
	}
	out := make([]Category, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, unknown
}
