package validation

import (
	"strings"
	"unicode"
)

// IsValidPrompt checks whether a user directive is worth sending to the model
// (not gibberish). This is a lenient filter: we would rather process a slightly
// odd prompt than reject a valid one.
func IsValidPrompt(prompt string) bool {
	trimmed := strings.TrimSpace(prompt)

	// At least 3 characters, at most a sane upper bound
	if len(trimmed) < 3 || len(trimmed) > 10000 {
		return false
	}

	if isRepeatedCharacters(trimmed) || hasExcessiveRepetition(trimmed) {
		return false
	}

	if hasKeyboardMashing(trimmed) {
		return false
	}

	// Should be mostly letters: at least 30% of non-space characters
	letterCount := 0
	totalChars := 0
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		totalChars++
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if totalChars == 0 {
		return false
	}
	if float64(letterCount)/float64(totalChars) < 0.3 {
		return false
	}

	return true
}

// IsValidFilePath checks a project-relative path: forward slashes only, no
// traversal, no leading slash, non-empty segments.
func IsValidFilePath(path string) bool {
	if path == "" || len(path) > 512 {
		return false
	}
	if strings.Contains(path, "\\") || strings.HasPrefix(path, "/") {
		return false
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

// isRepeatedCharacters checks if a string is just one character repeated
func isRepeatedCharacters(s string) bool {
	if len(s) < 3 {
		return false
	}
	firstChar := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != firstChar {
			return false
		}
	}
	return true
}

// hasExcessiveRepetition checks for runs like "aaaa" or "1111"
func hasExcessiveRepetition(s string) bool {
	if len(s) < 4 {
		return false
	}
	for i := 0; i <= len(s)-4; i++ {
		char := s[i]
		count := 1
		for j := i + 1; j < len(s) && s[j] == char; j++ {
			count++
		}
		if count >= 6 {
			return true
		}
	}
	return false
}

// hasKeyboardMashing checks for keyboard mashing patterns in short inputs
func hasKeyboardMashing(s string) bool {
	lower := strings.ToLower(s)

	mashingPatterns := []string{
		"asdfghjkl", "qwertyuiop", "zxcvbnm",
		"asdf", "qwer", "zxcv", "hjkl",
	}

	for _, pattern := range mashingPatterns {
		if strings.Contains(lower, pattern) && len(s) < 30 {
			return true
		}
	}

	return false
}
