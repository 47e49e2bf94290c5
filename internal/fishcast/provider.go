package fishcast

import (
	"fmt"
	"strings"
)

// Provider selects which analysis route the API should use. The smart route
// lets the server try Gemini and fall back on quota exhaustion; the direct
// routes pin one backend. Fallback decisions always stay server-side.
type Provider int

const (
	ProviderSmartAuto Provider = iota
	ProviderGemini
	ProviderHuggingFace
)

func (p Provider) String() string {
	switch p {
	case ProviderGemini:
		return "gemini"
	case ProviderHuggingFace:
		return "hf"
	case ProviderSmartAuto:
		return "smart"
	default:
		return fmt.Sprintf("Provider(%d)", int(p))
	}
}

// DisplayName returns the provider name shown to users.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGemini:
		return "Google Gemini"
	case ProviderHuggingFace:
		return "Hugging Face"
	default:
		return "Smart Auto"
	}
}

// endpoint returns the API path for this provider.
func (p Provider) endpoint() string {
	switch p {
	case ProviderGemini:
		return "/analyze-gemini"
	case ProviderHuggingFace:
		return "/analyze-hf"
	default:
		return "/analyze-smart"
	}
}

// ParseProvider maps user input like "gemini" or "hf" to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smart", "auto", "smart-auto":
		return ProviderSmartAuto, nil
	case "gemini":
		return ProviderGemini, nil
	case "hf", "huggingface", "hugging-face":
		return ProviderHuggingFace, nil
	}
	return ProviderSmartAuto, fmt.Errorf("unknown provider %q (use smart, gemini or hf)", s)
}
