package cargo

import (
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/errors"
)

// Lockfile is a parsed Cargo.lock.
type Lockfile struct {
	Version  int               `toml:"version"`
	Packages []LockPackage     `toml:"package"`
	Metadata map[string]string `toml:"metadata"` // v1 checksum table
}

// LockPackage is one [[package]] entry.
type LockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

// Checksums maps a registry package to the sha256 of its .crate archive.
type Checksums map[crate.ID]string

// LoadLockfile reads and parses the Cargo.lock at path.
func LoadLockfile(path string) (*Lockfile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "no Cargo.lock at %s; run `cargo generate-lockfile`", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "open %s", path)
	}
	defer f.Close()
	return ReadLockfile(f)
}

// ReadLockfile parses Cargo.lock content.
func ReadLockfile(r io.Reader) (*Lockfile, error) {
	var lock Lockfile
	if _, err := toml.NewDecoder(r).Decode(&lock); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "parse Cargo.lock")
	}
	return &lock, nil
}

// Checksums collects every known checksum. Newer lockfiles store them on the
// package entries; version 1 lockfiles keep them in the [metadata] table under
// keys of the form "checksum <name> <version> (<source>)".
func (l *Lockfile) Checksums() Checksums {
	sums := make(Checksums, len(l.Packages))
	for _, p := range l.Packages {
		if p.Checksum != "" {
			sums[crate.ID{Name: p.Name, Version: p.Version}] = p.Checksum
		}
	}
	for key, sum := range l.Metadata {
		fields := strings.Fields(key)
		if len(fields) < 3 || fields[0] != "checksum" || sum == "<none>" {
			continue
		}
		id := crate.ID{Name: fields[1], Version: fields[2]}
		if _, ok := sums[id]; !ok {
			sums[id] = sum
		}
	}
	return sums
}
