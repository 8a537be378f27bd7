package domain

type ModelProvider string

const (
	ProviderGroq   ModelProvider = "groq"
	ProviderOpenAI ModelProvider = "openai"
)

func (p ModelProvider) Valid() bool {
	return p == ProviderGroq || p == ProviderOpenAI
}

// ModelInfo is one entry of the static model catalog.
type ModelInfo struct {
	ID                   string        `json:"name"`
	Provider             ModelProvider `json:"provider"`
	CostPerMillionTokens float64       `json:"cost_per_million_tokens"`
}
