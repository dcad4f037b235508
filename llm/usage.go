package llm

// Usage contains token usage information for an LLM response. Usage values
// combine additively; Add is the only combinator.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	TotalTokens              int `json:"total_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Copy returns a copy of the usage data.
func (u *Usage) Copy() *Usage {
	clone := *u
	return &clone
}

// Add incremental usage to this usage object.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// AddUsage returns the sum of two usage values. The operation is commutative
// and associative.
func AddUsage(a, b Usage) Usage {
	sum := a
	sum.Add(&b)
	return sum
}
