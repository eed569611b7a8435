package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/matheus3301/chatsync/internal/protocol"
)

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"valid with underscore", "my_profile", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my profile", true},
		{"slash", "my/profile", true},
		{"too long", strings.Repeat("a", 65), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProfile(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestRequireFields(t *testing.T) {
	err := requireFields(protocol.LogInRequest{Email: "a@b.c"})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("error = %v, want ErrMissingField", err)
	}
	if !strings.Contains(err.Error(), "Password") {
		t.Errorf("error %q does not name the missing field", err)
	}

	if err := requireFields(protocol.SignUpRequest{FullName: "A", Email: "a@b.c", Password: "secret"}); err != nil {
		t.Errorf("complete request rejected: %v", err)
	}
}
