package config

// envAliases lists, per config key, environment variables read in addition to
// the SOLVER_ prefixed name. Earlier names win.
var envAliases = map[string][]string{
	"llm.api_key":        {"OPENROUTER_API_KEY", "OPENAI_API_KEY"},
	"llm.base_url":       {"OPENROUTER_BASE_URL"},
	"llm.fallback_model": {"OPENROUTER_FALLBACK_MODEL"},
	"llm.referer":        {"OPENROUTER_REFERER"},
	"llm.title":          {"OPENROUTER_TITLE"},
	"models.planner":     {"OPENROUTER_DEFAULT_MODEL"},
	"models.generator":   {"OPENROUTER_DEFAULT_MODEL"},
	"models.critic":      {"OPENROUTER_DEFAULT_MODEL"},
	"models.synthesizer": {"OPENROUTER_DEFAULT_MODEL"},
	"profile":            {"SOLVER_ENV"},
	"log.level":          {"LOG_LEVEL"},
}
