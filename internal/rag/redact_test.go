package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactName(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		patient string
		want    string
	}{
		{
			name:    "exact match",
			text:    "Jane Doe was seen today.",
			patient: "Jane Doe",
			want:    "[PATIENT_NAME] was seen today.",
		},
		{
			name:    "case insensitive",
			text:    "jane doe complained of headaches. JANE DOE was prescribed rest.",
			patient: "Jane Doe",
			want:    "[PATIENT_NAME] complained of headaches. [PATIENT_NAME] was prescribed rest.",
		},
		{
			name:    "word boundaries keep joined names",
			text:    "Janedoe is not the same patient.",
			patient: "Jane Doe",
			want:    "Janedoe is not the same patient.",
		},
		{
			name:    "no partial word match",
			text:    "Janet is a different patient.",
			patient: "Jane",
			want:    "Janet is a different patient.",
		},
		{
			name:    "empty name redacts nothing",
			text:    "Jane Doe was seen today.",
			patient: "",
			want:    "Jane Doe was seen today.",
		},
		{
			name:    "whitespace-only name redacts nothing",
			text:    "Jane Doe was seen today.",
			patient: "   ",
			want:    "Jane Doe was seen today.",
		},
		{
			name:    "name absent leaves text unchanged",
			text:    "The patient reports improvement.",
			patient: "Jane Doe",
			want:    "The patient reports improvement.",
		},
		{
			name:    "regex metacharacters in name are literal",
			text:    "Seen: Jane (Doe) Smith today.",
			patient: "Jane (Doe) Smith",
			want:    "Seen: [PATIENT_NAME] today.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactName(tt.text, tt.patient))
		})
	}
}
