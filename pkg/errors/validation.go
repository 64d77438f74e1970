package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// crateNameRegex matches valid Cargo package names.
var crateNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateCrateName validates a Cargo package name, as passed to --package.
func ValidateCrateName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if len(name) > 64 {
		return New(ErrCodeInvalidPackage, "crate name too long (max 64 characters): %q", name)
	}

	if !crateNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid crate name: %q", name)
	}

	return nil
}

// targetTripleRegex matches Rust target triples such as x86_64-unknown-linux-gnu
// or wasm32-wasi. Between two and four dash-separated components.
var targetTripleRegex = regexp.MustCompile(`^[a-z0-9_]+(-[a-z0-9_.]+){1,3}$`)

// ValidateTargetTriple validates a Rust target triple, as passed to --target.
func ValidateTargetTriple(triple string) error {
	if triple == "" {
		return New(ErrCodeInvalidTarget, "target triple cannot be empty")
	}
	if !targetTripleRegex.MatchString(triple) {
		return New(ErrCodeInvalidTarget, "invalid target triple: %q", triple)
	}
	return nil
}

// rustVersionRegex matches the stable toolchain versions rust-overlay publishes.
var rustVersionRegex = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)

// ValidateRustVersion validates a stable Rust toolchain version ("1.68.0" or "latest").
func ValidateRustVersion(version string) error {
	if version == "latest" || rustVersionRegex.MatchString(version) {
		return nil
	}
	return New(ErrCodeInvalidConfig, "invalid rust version %q (want X.Y.Z or latest)", version)
}

// ValidateFeatureName validates a feature name given on the command line.
// Dependency forms ("dep:x", "x/y") are allowed; whitespace and quotes are not,
// since the name ends up inside the generated Nix expression.
func ValidateFeatureName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "feature name cannot be empty")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '"' || r == '\\' || r == '$' {
			return New(ErrCodeInvalidInput, "feature name contains invalid characters: %q", name)
		}
	}
	return nil
}
