package core

// DefaultPlatforms is the platform set probed when none is configured.
// Perplexity answers from live search results, so it gets the search prompt.
var DefaultPlatforms = []PlatformSpec{
	{ID: "chatgpt", DisplayName: "ChatGPT", Model: "openai/gpt-4o", Kind: PlatformKindStandard},
	{ID: "gemini", DisplayName: "Gemini", Model: "google/gemini-2.0-flash-001", Kind: PlatformKindStandard},
	{ID: "claude", DisplayName: "Claude", Model: "anthropic/claude-3.5-sonnet", Kind: PlatformKindStandard},
	{ID: "perplexity", DisplayName: "Perplexity", Model: "perplexity/sonar", Kind: PlatformKindSearch},
	{ID: "llama", DisplayName: "Llama (Meta AI)", Model: "meta-llama/llama-3.1-70b-instruct", Kind: PlatformKindStandard},
}

// DefaultDiscoveryModel infers the business profile.
const DefaultDiscoveryModel = "openai/gpt-4o"

// Platforms returns a copy of the default platform table.
func Platforms() []PlatformSpec {
	out := make([]PlatformSpec, len(DefaultPlatforms))
	copy(out, DefaultPlatforms)
	return out
}
