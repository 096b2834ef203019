package errors

import (
	"testing"
)

func TestValidateTypeTag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "ID", false},
		{"package qualified", "geom.Point", false},
		{"path qualified", "github.com/acme/shapes.Rect", false},
		{"underscore", "diagram.text_shape", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"reserved prefix", "@type", true},
		{"leading digit", "9lives", true},
		{"trailing dot", "geom.", true},
		{"space", "geom Point", true},
		{"yaml global tag", "tag:yaml.org,2002:str", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTypeTag(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTypeTag(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidTag) {
				t.Errorf("ValidateTypeTag(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateFormatName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"json", "json", false},
		{"jsonc", "jsonc", false},
		{"with dash", "yaml-flow", false},

		{"empty", "", true},
		{"uppercase", "JSON", true},
		{"leading digit", "1json", true},
		{"slash", "json/v2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFormatName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFormatName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "diagram-1", false},
		{"nested", "team/flows/main", false},
		{"with dots", "v1.2.3", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"path traversal", "../../etc/passwd", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidKey) {
				t.Errorf("ValidateKey(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}
