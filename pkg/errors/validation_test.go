package errors

import (
	"strings"
	"testing"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "serde", false},
		{"valid with dash", "my-package", false},
		{"valid with underscore", "my_package", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"path traversal ..", "foo/../bar", true},
		{"path traversal //", "foo//bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCrateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "serde", false},
		{"with dash", "my-crate", false},
		{"with underscore", "my_crate", false},
		{"mixed case", "Inflector", false},

		{"empty", "", true},
		{"starts with number", "123crate", true},
		{"starts with dash", "-crate", true},
		{"with dot", "my.crate", true},
		{"too long", "a" + strings.Repeat("b", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCrateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCrateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTargetTriple(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"x86_64-unknown-linux-gnu", false},
		{"aarch64-apple-darwin", false},
		{"wasm32-wasi", false},
		{"thumbv7em-none-eabihf", false},

		{"", true},
		{"linux", true},
		{"x86_64 unknown linux", true},
		{"X86_64-unknown-linux-gnu", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateTargetTriple(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTargetTriple(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidTarget) {
				t.Errorf("ValidateTargetTriple(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateRustVersion(t *testing.T) {
	for _, ok := range []string{"1.68.0", "1.75.1", "latest"} {
		if err := ValidateRustVersion(ok); err != nil {
			t.Errorf("ValidateRustVersion(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1.68", "stable", "1.68.0-beta"} {
		if err := ValidateRustVersion(bad); !Is(err, ErrCodeInvalidConfig) {
			t.Errorf("ValidateRustVersion(%q) = %v, want INVALID_CONFIG", bad, err)
		}
	}
}

func TestValidateFeatureName(t *testing.T) {
	for _, ok := range []string{"std", "serde/derive", "dep:tokio", "tokio?/rt"} {
		if err := ValidateFeatureName(ok); err != nil {
			t.Errorf("ValidateFeatureName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a b", `x"y`, "${evil}", "a\nb"} {
		if err := ValidateFeatureName(bad); err == nil {
			t.Errorf("ValidateFeatureName(%q) should fail", bad)
		}
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidPackage,
		ErrCodeInvalidFormat,
		ErrCodeInvalidManifest,
		ErrCodeInvalidMetadata,
		ErrCodeInvalidLockfile,
		ErrCodeInvalidConfig,
		ErrCodeInvalidTarget,
		ErrCodePackageNotFound,
		ErrCodePackageRequired,
		ErrCodeMissingChecksum,
		ErrCodeFileNotFound,
		ErrCodeCommandFailed,
		ErrCodeCache,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
