package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		wantErr error
	}{
		{"Valid subject", "Hello there", nil},
		{"Valid subject at max length", strings.Repeat("a", MaxSubjectLength), nil},
		{"Invalid - empty", "", ErrEmptySubject},
		{"Invalid - whitespace only", "   \t ", ErrEmptySubject},
		{"Invalid - too long", strings.Repeat("a", MaxSubjectLength+1), ErrSubjectTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubject(tt.subject)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"Valid content", "body text", nil},
		{"Valid content at max length", strings.Repeat("x", MaxContentLength), nil},
		{"Invalid - empty", "", ErrEmptyContent},
		{"Invalid - whitespace only", "  \n  ", ErrEmptyContent},
		{"Invalid - too long", strings.Repeat("x", MaxContentLength+1), ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.content)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		parent   string
		expected string
	}{
		{"Inherits parent subject with prefix", "", "Meeting notes", "Re: Meeting notes"},
		{"No double prefix", "", "Re: Meeting notes", "Re: Meeting notes"},
		{"Explicit subject wins", "Changed topic", "Meeting notes", "Changed topic"},
		{"Whitespace explicit falls back to parent", "   ", "Meeting notes", "Re: Meeting notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReplySubject(tt.explicit, tt.parent))
		})
	}
}
