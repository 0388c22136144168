package tts

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationResult contains the result of engine validation
type ValidationResult struct {
	// Engine is the validated engine type
	Engine EngineType

	// Available indicates if the engine is available and configured
	Available bool

	// Error contains any validation error
	Error error

	// Guidance provides setup instructions if validation failed
	Guidance string

	// Details contains additional validation information
	Details map[string]string
}

// ValidateEngineSelection resolves the engine to use. The CLI argument takes
// precedence over the config file. Returns ErrNoEngineConfigured if neither
// names an engine.
func ValidateEngineSelection(cliArg string, config Config) (EngineType, error) {
	engineType := cliArg
	if engineType == "" {
		engineType = config.Engine
	}

	if engineType == "" {
		return EngineNone, fmt.Errorf("%w\n\nPlease specify an engine:\n  soundbox speak --engine sarvam --text \"...\"   # Sarvam AI (online)\n  soundbox speak --engine mock --text \"...\"     # Offline mock\n\nOr set a default in your config file:\n  tts:\n    engine: sarvam  # or \"mock\"", ErrNoEngineConfigured)
	}

	switch strings.ToLower(engineType) {
	case "sarvam", "bulbul":
		return EngineSarvam, nil
	case "mock":
		return EngineMock, nil
	default:
		return EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - sarvam (Sarvam AI text-to-speech)\n  - mock (offline, for testing)", ErrInvalidEngine, engineType)
	}
}

// ValidateEngine checks that the engine has what it needs to run. It does not
// perform a test synthesis.
func ValidateEngine(engineType EngineType, config Config) *ValidationResult {
	result := &ValidationResult{
		Engine:  engineType,
		Details: make(map[string]string),
	}

	switch engineType {
	case EngineSarvam:
		result = validateSarvamEngine(config.Sarvam, result)
	case EngineMock:
		result.Details["engine"] = "Mock (offline)"
		result.Details["format"] = fmt.Sprintf("%dch/%dbit/%dHz", config.Mock.Channels, config.Mock.BitDepth, config.Mock.SampleRate)
		result.Available = true
	case EngineNone:
		result.Error = ErrNoEngineConfigured
		result.Guidance = "Please specify a TTS engine with --engine or in the config file"
	default:
		result.Error = fmt.Errorf("%w: %s", ErrInvalidEngine, engineType)
		result.Guidance = "Supported engines: sarvam, mock"
	}

	return result
}

// validateSarvamEngine validates the Sarvam API configuration
func validateSarvamEngine(config SarvamConfig, result *ValidationResult) *ValidationResult {
	result.Details["engine"] = "Sarvam AI (online)"

	if config.APIKey == "" {
		result.Error = fmt.Errorf("%w: Sarvam API key not configured", ErrEngineNotAvailable)
		result.Guidance = buildSarvamKeyGuidance()
		return result
	}
	result.Details["api_key"] = maskKey(config.APIKey)

	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		result.Error = fmt.Errorf("%w: invalid Sarvam base URL %q", ErrEngineNotAvailable, config.BaseURL)
		result.Guidance = "Set tts.sarvam.base_url to an absolute URL such as https://api.sarvam.ai"
		return result
	}
	result.Details["base_url"] = u.String()

	result.Available = true
	result.Details["status"] = "Ready (full validation requires network test)"
	return result
}

// maskKey hides all but the last four characters of a secret.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// buildSarvamKeyGuidance provides instructions for configuring the API key
func buildSarvamKeyGuidance() string {
	return `Sarvam API key is not configured. To configure:

1. Create a key at https://dashboard.sarvam.ai
2. Export it in your shell:
   export SARVAM_API_KEY=your-key

   Or set it in your config file:
   tts:
     sarvam:
       api_key: your-key

3. For offline testing use the mock engine instead:
   soundbox speak --engine mock --text "..."`
}
