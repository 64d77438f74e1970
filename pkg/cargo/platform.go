package cargo

import (
	"runtime"
	"slices"
	"strings"

	"github.com/matzehuels/rustnix/pkg/errors"
)

// Platform is a compilation target: a Rust triple plus the cfg values rustc
// would set for it.
type Platform struct {
	Triple string

	// cfg maps a cfg key to its values. Bare flags such as "unix" map to nil.
	cfg map[string][]string
}

var goArchToRust = map[string]string{
	"amd64":   "x86_64",
	"arm64":   "aarch64",
	"386":     "i686",
	"arm":     "armv7",
	"riscv64": "riscv64gc",
	"ppc64le": "powerpc64le",
	"s390x":   "s390x",
}

var goOSToRust = map[string]string{
	"linux":   "unknown-linux-gnu",
	"darwin":  "apple-darwin",
	"windows": "pc-windows-msvc",
	"freebsd": "unknown-freebsd",
	"netbsd":  "unknown-netbsd",
	"openbsd": "unknown-openbsd",
}

// HostPlatform returns the platform this binary runs on. It falls back to
// x86_64-unknown-linux-gnu for combinations with no obvious Rust triple.
func HostPlatform() Platform {
	arch, okArch := goArchToRust[runtime.GOARCH]
	rest, okOS := goOSToRust[runtime.GOOS]
	if !okArch || !okOS {
		p, _ := NewPlatform("x86_64-unknown-linux-gnu")
		return p
	}
	if arch == "armv7" && runtime.GOOS == "linux" {
		rest = "unknown-linux-gnueabihf"
	}
	p, _ := NewPlatform(arch + "-" + rest)
	return p
}

// NewPlatform derives the cfg values of a target triple.
func NewPlatform(triple string) (Platform, error) {
	if err := errors.ValidateTargetTriple(triple); err != nil {
		return Platform{}, err
	}

	parts := strings.Split(triple, "-")
	arch := parts[0]
	vendor, osName, env := "unknown", "none", ""
	switch {
	case len(parts) == 2:
		osName = parts[1]
	case parts[1] == "linux":
		// vendorless triples such as aarch64-linux-android
		osName, env = "linux", parts[2]
	default:
		vendor, osName = parts[1], parts[2]
		if len(parts) > 3 {
			env = parts[3]
		}
	}
	if osName == "darwin" {
		osName = "macos"
	}
	if strings.HasPrefix(env, "android") {
		osName = "android"
	}

	cfg := map[string][]string{
		"target_arch":          {normalizeArch(arch)},
		"target_os":            {osName},
		"target_vendor":        {vendor},
		"target_env":           {targetEnv(env)},
		"target_pointer_width": {pointerWidth(arch)},
		"target_endian":        {endian(arch)},
	}
	if family := targetFamily(arch, osName); family != "" {
		cfg["target_family"] = []string{family}
		cfg[family] = nil
	}
	return Platform{Triple: triple, cfg: cfg}, nil
}

// Cfg returns the values set for key, and whether key is set at all.
func (p Platform) Cfg(key string) ([]string, bool) {
	v, ok := p.cfg[key]
	return v, ok
}

func (p Platform) has(key, value string) bool {
	return slices.Contains(p.cfg[key], value)
}

// Matches reports whether a dependency target spec applies to the platform.
// The spec is either a bare triple or a cfg(...) expression. Specs that do not
// parse never match.
func (p Platform) Matches(spec string) bool {
	spec = strings.TrimSpace(spec)
	if !strings.HasPrefix(spec, "cfg(") {
		return spec == p.Triple
	}
	expr, err := parseCfgCached(spec)
	if err != nil {
		return false
	}
	return expr.eval(p)
}

func normalizeArch(arch string) string {
	switch {
	case arch == "i386" || arch == "i586" || arch == "i686":
		return "x86"
	case strings.HasPrefix(arch, "armv7"), strings.HasPrefix(arch, "thumbv"), arch == "arm":
		return "arm"
	case strings.HasPrefix(arch, "riscv64"):
		return "riscv64"
	case strings.HasPrefix(arch, "riscv32"):
		return "riscv32"
	case strings.HasPrefix(arch, "powerpc64"):
		return "powerpc64"
	}
	return arch
}

func targetEnv(env string) string {
	for _, prefix := range []string{"gnu", "musl", "msvc", "sgx", "uclibc"} {
		if strings.HasPrefix(env, prefix) {
			return prefix
		}
	}
	return ""
}

func pointerWidth(arch string) string {
	for _, prefix := range []string{"x86_64", "aarch64", "powerpc64", "riscv64", "s390x", "wasm64", "mips64", "sparc64", "loongarch64"} {
		if strings.HasPrefix(arch, prefix) {
			return "64"
		}
	}
	return "32"
}

func endian(arch string) string {
	switch {
	case strings.HasSuffix(arch, "le"), strings.HasSuffix(arch, "el"):
		return "little"
	case arch == "s390x", strings.HasPrefix(arch, "powerpc"), strings.HasPrefix(arch, "mips"), strings.HasPrefix(arch, "sparc"):
		return "big"
	}
	return "little"
}

func targetFamily(arch, osName string) string {
	switch osName {
	case "windows":
		return "windows"
	case "linux", "macos", "ios", "android", "freebsd", "netbsd", "openbsd", "dragonfly", "solaris", "illumos", "haiku":
		return "unix"
	}
	if strings.HasPrefix(arch, "wasm") {
		return "wasm"
	}
	return ""
}
