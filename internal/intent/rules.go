package intent

// baseRules apply to every task regardless of type.
var baseRules = []string{
	"Do not change layout structure",
	"Do not remove existing functionality",
	"Preserve all existing imports",
	"Only modify what is explicitly requested",
}

// typeRules maps every enumerated type to its additional constraints.
// The mapping is total: types without extra constraints map to nil.
var typeRules = map[Type][]string{
	TypeCopyChange: {
		"Only modify text content",
		"Do not touch styles or classes",
		"Keep the same element types",
	},
	TypeColorChange: {
		"Only modify color values",
		"Keep the same variable names",
		"Do not change other style properties",
	},
	TypeSEOUpdate: {
		"Only modify meta tags",
		"Keep valid HTML structure",
		"Do not change page content",
	},
	TypeSectionReorder: {
		"Only change component order",
		"Do not modify component internals",
		"Keep all props intact",
	},
	TypeStyleChange: {
		"Only modify style properties",
		"Keep responsive breakpoints",
		"Do not change structure",
	},
	TypeAddContent: {
		"Do not modify existing content",
		"Match the surrounding code style",
	},
	TypeRemoveContent: {
		"Remove only the named content",
		"Do not leave unused imports behind",
	},
	TypeComponentEdit: nil,
}

// RulesFor returns the base rule set concatenated with the type-specific
// additions.
func RulesFor(t Type) []string {
	rules := make([]string, 0, len(baseRules)+len(typeRules[t]))
	rules = append(rules, baseRules...)
	rules = append(rules, typeRules[t]...)
	return rules
}
