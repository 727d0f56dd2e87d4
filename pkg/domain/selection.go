package domain

// Location marks one end of a selection. It is opaque to the synchronizer.
type Location struct {
	NodeID    string `json:"node_id,omitempty" yaml:"node_id,omitempty" mapstructure:"node_id"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty" mapstructure:"attribute"`
	Offset    int    `json:"offset,omitempty" yaml:"offset,omitempty" mapstructure:"offset"`
}

// Selection is the store's current selection, passed through to outward callbacks.
type Selection struct {
	Start Location `json:"start" yaml:"start" mapstructure:"start"`
	End   Location `json:"end" yaml:"end" mapstructure:"end"`
}

// IsZero reports whether nothing is selected.
func (s Selection) IsZero() bool {
	return s == Selection{}
}
