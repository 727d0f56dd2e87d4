package loam

// ScenarioMetadata is the frontmatter of a scenario document.
type ScenarioMetadata struct {
	ID    string         `json:"id" mapstructure:"id"`
	Name  string         `json:"name" mapstructure:"name"`
	Steps []StepMetadata `json:"steps" mapstructure:"steps"`
}

// StepMetadata is one scripted step as written in the frontmatter.
type StepMetadata struct {
	Action string         `json:"action" mapstructure:"action"`
	Args   map[string]any `json:"args" mapstructure:"args"`
}
