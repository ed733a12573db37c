package repository

// IsValidWindow returns true if w is a supported lookback window.
func IsValidWindow(w Window) bool {
	switch w {
	case Win30d, Win90d, Win180d:
		return true
	default:
		return false
	}
}

// DefaultWindow returns the default lookback window.
func DefaultWindow() Window { return Win90d }

// NormalizeWindow converts a raw string to a valid window (or default).
func NormalizeWindow(s string) Window {
	if s == "" {
		return DefaultWindow()
	}
	w := Window(s)
	if IsValidWindow(w) {
		return w
	}
	return DefaultWindow()
}

// Days returns the window length in days.
func (w Window) Days() int {
	switch w {
	case Win30d:
		return 30
	case Win180d:
		return 180
	default:
		return 90
	}
}
