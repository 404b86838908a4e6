package rag

import (
	"regexp"
	"strings"
)

// NamePlaceholder replaces redacted patient names in persisted text.
const NamePlaceholder = "[PATIENT_NAME]"

// RedactName replaces every case-insensitive whole-word occurrence of the
// patient's name in text with NamePlaceholder. A multi-word name is matched
// as one literal phrase with word boundaries at both ends, so "Janedoe" is
// left untouched for patient "Jane Doe". An empty name redacts nothing.
//
// Redaction applies only to what is persisted to the query log; responses
// returned to the requesting clinician keep the original text.
func RedactName(text, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return text
	}

	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	return pattern.ReplaceAllString(text, NamePlaceholder)
}
