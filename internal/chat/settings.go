package chat

// Settings are the four numeric generation parameters, each bounded to its
// documented range.
type Settings struct {
	Temperature     float32 `json:"temperature"`     // 0.0 to 1.0
	TopK            int32   `json:"topK"`            // 1 to 100
	TopP            float32 `json:"topP"`            // 0.0 to 1.0
	MaxOutputTokens int32   `json:"maxOutputTokens"` // 1 to 8192
}

// DefaultSettings apply at first run.
func DefaultSettings() Settings {
	return Settings{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

// Clamp forces every field into its documented range.
func (s Settings) Clamp() Settings {
	s.Temperature = clampFloat(s.Temperature, 0, 1)
	s.TopK = clampInt(s.TopK, 1, 100)
	s.TopP = clampFloat(s.TopP, 0, 1)
	s.MaxOutputTokens = clampInt(s.MaxOutputTokens, 1, 8192)
	return s
}

func clampFloat(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
