// Package lookup locates external tool executables across
// heterogeneous environments. Resolution runs an ordered,
// short-circuiting chain of probe strategies and caches the outcome
// per logical name for the lifetime of one resolver.
package lookup

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// wellKnownDirs are scanned as a last filesystem resort. They cover
// user-local installs and language-toolchain tool directories (BBDown
// ships as a dotnet global tool).
var wellKnownDirs = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"~/.local/bin",
	"~/bin",
	"~/.dotnet/tools",
}

// probeRunner executes short OS introspection commands for the shell
// based probes.
type probeRunner interface {
	Output(name string, args ...string) (string, error)
}

type execProbeRunner struct{}

func (execProbeRunner) Output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	return string(out), err
}

type resolution struct {
	path string
	ok   bool
}

// Resolver maps logical command names to executable paths. Results are
// cached and never invalidated mid-run: if a tool disappears after the
// first probe, the failure surfaces downstream, not here.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]resolution

	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	homeDir  func() (string, error)
	runner   probeRunner
}

// NewResolver builds a resolver using real OS dependencies.
func NewResolver() *Resolver {
	return &Resolver{
		cache:    make(map[string]resolution),
		lookPath: exec.LookPath,
		stat:     os.Stat,
		homeDir:  os.UserHomeDir,
		runner:   execProbeRunner{},
	}
}

// NewResolverForTests builds a resolver with injectable dependencies.
func NewResolverForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	homeDir func() (string, error),
	runner probeRunner,
) *Resolver {
	r := NewResolver()
	if lookPath != nil {
		r.lookPath = lookPath
	}
	if stat != nil {
		r.stat = stat
	}
	if homeDir != nil {
		r.homeDir = homeDir
	}
	if runner != nil {
		r.runner = runner
	}
	return r
}

// Resolve returns the absolute path for a logical command name, or
// ("", false) when every probe misses. Callers may still spawn the
// bare name as a last resort so PATH resolution gets a final chance.
func (r *Resolver) Resolve(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, found := r.cache[name]; found {
		return cached.path, cached.ok
	}

	path, ok := r.probe(name)
	r.cache[name] = resolution{path: path, ok: ok}
	return path, ok
}

// probe runs the strategy chain in order, stopping at the first hit.
func (r *Resolver) probe(name string) (string, bool) {
	strategies := []func(string) (string, bool){
		r.probePathLookup,
		r.probeNameVariants,
		r.probeShellBuiltin,
		r.probeWhichAll,
		r.probeWellKnownDirs,
		r.probeTypeBuiltin,
		r.probeWhereis,
	}

	for _, locate := range strategies {
		if path, ok := locate(name); ok {
			return path, true
		}
	}
	return "", false
}

func (r *Resolver) probePathLookup(name string) (string, bool) {
	path, err := r.lookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

func (r *Resolver) probeNameVariants(name string) (string, bool) {
	for _, variant := range nameVariants(name) {
		if variant == name {
			continue
		}
		if path, err := r.lookPath(variant); err == nil {
			return path, true
		}
	}
	return "", false
}

// probeShellBuiltin asks the shell's own lookup, which can see PATH
// entries the process environment missed.
func (r *Resolver) probeShellBuiltin(name string) (string, bool) {
	out, err := r.runner.Output("sh", "-c", "command -v "+shellQuote(name))
	if err != nil {
		return "", false
	}
	return r.firstExecutableLine(out)
}

func (r *Resolver) probeWhichAll(name string) (string, bool) {
	out, err := r.runner.Output("which", "-a", name)
	if err != nil {
		return "", false
	}
	return r.firstExecutableLine(out)
}

func (r *Resolver) probeWellKnownDirs(name string) (string, bool) {
	for _, dir := range wellKnownDirs {
		expanded, ok := r.expandDir(dir)
		if !ok {
			continue
		}
		for _, variant := range nameVariants(name) {
			candidate := filepath.Join(expanded, variant)
			if r.isExecutableFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Resolver) probeTypeBuiltin(name string) (string, bool) {
	out, err := r.runner.Output("sh", "-c", "type -P "+shellQuote(name))
	if err != nil {
		return "", false
	}
	return r.firstExecutableLine(out)
}

// probeWhereis parses "name: /path /path..." output, keeping the first
// candidate that is a regular executable file.
func (r *Resolver) probeWhereis(name string) (string, bool) {
	out, err := r.runner.Output("whereis", "-b", name)
	if err != nil {
		return "", false
	}

	_, list, found := strings.Cut(out, ":")
	if !found {
		return "", false
	}
	for _, candidate := range strings.Fields(list) {
		if r.isExecutableFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// firstExecutableLine validates probe output line by line and returns
// the first regular executable file.
func (r *Resolver) firstExecutableLine(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		candidate := strings.TrimSpace(line)
		if candidate == "" || !filepath.IsAbs(candidate) {
			continue
		}
		if r.isExecutableFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (r *Resolver) isExecutableFile(path string) bool {
	info, err := r.stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

func (r *Resolver) expandDir(dir string) (string, bool) {
	if !strings.HasPrefix(dir, "~") {
		return dir, true
	}
	home, err := r.homeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/")), true
}

// nameVariants returns the historically inconsistent spellings of a
// logical name. BBDown releases have shipped under several casings.
func nameVariants(name string) []string {
	if strings.EqualFold(name, "bbdown") {
		return []string{"BBDown", "bbdown", "BBdown"}
	}
	return []string{name}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
