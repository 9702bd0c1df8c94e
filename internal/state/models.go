package state

// ModelOption is one selectable backend model.
type ModelOption struct {
	ID          string
	Label       string
	Description string
}

const DefaultModel = "claude-opus-4-6"

func ModelOptions() []ModelOption {
	return []ModelOption{
		{ID: "claude-opus-4-6", Label: "Opus 4.6", Description: "Most capable"},
		{ID: "claude-sonnet-4-6", Label: "Sonnet 4.6", Description: "Fast & smart"},
		{ID: "claude-haiku-4-5", Label: "Haiku 4.5", Description: "Fastest"},
	}
}
