package llm

// DefaultMaxTokens caps output when neither the client nor the call sets
// "max_tokens". A full review with four rated sections and a
// recommendation fits comfortably.
const DefaultMaxTokens = 2048

// RequestOptions is the provider-neutral view of a request's option map.
type RequestOptions struct {
	// MaxTokens is the output token cap.
	MaxTokens int
	// Model overrides the provider's configured model for one call.
	Model string
	// Temperature is nil when the provider default should be used.
	Temperature *float64
	// TopP is nil when the provider default should be used.
	TopP *float64
	// System is an instruction sent separately from the prompt where the
	// provider supports it.
	System string
	// Extra holds provider-specific options such as "top_k".
	Extra map[string]any
}

// ParseRequestOptions reads the standard keys from opts, falling back to
// defaults for missing or out-of-range values. Unrecognized keys land in
// Extra.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}
	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p":
		default:
			options.Extra[k] = v
		}
	}
	return options
}

// ExtractOptionalInt returns opts[key] when it is an int accepted by
// validator, and defaultVal otherwise.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	return extractOptional(opts, key, defaultVal, validator)
}

// ExtractOptionalString returns opts[key] when it is a string accepted by
// validator, and defaultVal otherwise.
func ExtractOptionalString(opts map[string]any, key, defaultVal string, validator func(string) bool) string {
	return extractOptional(opts, key, defaultVal, validator)
}

// ExtractOptionalFloat64 returns opts[key] when it is numeric and accepted
// by validator, and defaultVal otherwise. YAML and JSON decoders hand
// integers to the option map, so ints are widened.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	if i, ok := opts[key].(int); ok {
		opts = map[string]any{key: float64(i)}
	}
	return extractOptional(opts, key, defaultVal, validator)
}

func extractOptional[T any](opts map[string]any, key string, defaultVal T, validator func(T) bool) T {
	val, ok := opts[key].(T)
	if !ok {
		return defaultVal
	}
	if validator != nil && !validator(val) {
		return defaultVal
	}
	return val
}
