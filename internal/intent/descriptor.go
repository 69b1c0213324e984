package intent

// Type is the closed enumeration of change-request categories.
type Type string

const (
	TypeCopyChange     Type = "copy_change"
	TypeSectionReorder Type = "section_reorder"
	TypeColorChange    Type = "color_change"
	TypeSEOUpdate      Type = "seo_update"
	TypeComponentEdit  Type = "component_edit"
	TypeStyleChange    Type = "style_change"
	TypeAddContent     Type = "add_content"
	TypeRemoveContent  Type = "remove_content"
)

// Types lists every valid type.
var Types = []Type{
	TypeCopyChange,
	TypeSectionReorder,
	TypeColorChange,
	TypeSEOUpdate,
	TypeComponentEdit,
	TypeStyleChange,
	TypeAddContent,
	TypeRemoveContent,
}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ConfidenceThreshold is the minimum confidence at which a task should be
// created. Below it the caller asks the sender to clarify instead.
const ConfidenceThreshold = 0.5

// Descriptor is the transient result of classifying one message. It is
// consumed once, by task creation.
type Descriptor struct {
	Type        Type     `json:"type"`
	Description string   `json:"description"`
	Scope       []string `json:"scope"`
	Rules       []string `json:"rules"`
	AutoCommit  bool     `json:"auto_commit"`
	Confidence  float64  `json:"confidence"`
	TargetRepo  string   `json:"target_repo,omitempty"`
}

// autoCommitTypes is the fixed safe subset: changes reversible enough to
// commit without a human review gate.
var autoCommitTypes = map[Type]bool{
	TypeCopyChange:  true,
	TypeColorChange: true,
	TypeSEOUpdate:   true,
	TypeStyleChange: true,
}

// AutoCommitAllowed reports whether the type belongs to the safe subset.
// The classifier derives auto_commit from this; it is never sender-overridable.
func AutoCommitAllowed(t Type) bool {
	return autoCommitTypes[t]
}
