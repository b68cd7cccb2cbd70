// Package composer maps PHP file paths to namespaces and back using the
// project's composer.json PSR-4 autoload configuration.
package composer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/phpref/internal/debug"
)

type mapping struct {
	prefix string // namespace prefix, no trailing backslash
	dir    string // directory relative to project root, slash-normalized, no trailing slash
}

// Resolver answers "what namespace should the class in this file declare"
// and "where does this FQN live on disk". It is immutable after Load.
type Resolver struct {
	root     string
	mappings []mapping
	loaded   bool
}

// composerFile is the subset of composer.json the resolver reads.
type composerFile struct {
	Autoload struct {
		PSR4 map[string]json.RawMessage `json:"psr-4"`
	} `json:"autoload"`
	AutoloadDev struct {
		PSR4 map[string]json.RawMessage `json:"psr-4"`
	} `json:"autoload-dev"`
}

// Load reads composer.json from projectRoot. A missing or unparseable
// composer.json is not an error; the resolver degrades to no mappings and
// move operations fall back to keeping declared namespaces untouched.
func Load(projectRoot string) (*Resolver, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	r := &Resolver{root: abs}

	data, err := os.ReadFile(filepath.Join(abs, "composer.json"))
	if err != nil {
		debug.LogIndexing("no composer.json at %s: %v", abs, err)
		return r, nil
	}

	var cf composerFile
	if err := json.Unmarshal(data, &cf); err != nil {
		debug.LogIndexing("composer.json unparseable: %v", err)
		return r, nil
	}

	r.addPSR4(cf.Autoload.PSR4)
	r.addPSR4(cf.AutoloadDev.PSR4)
	r.loaded = len(r.mappings) > 0

	// Longest prefix first so the most specific mapping wins; equal-length
	// prefixes order lexically and the first match is taken.
	sort.SliceStable(r.mappings, func(i, j int) bool {
		if len(r.mappings[i].prefix) != len(r.mappings[j].prefix) {
			return len(r.mappings[i].prefix) > len(r.mappings[j].prefix)
		}
		return r.mappings[i].prefix < r.mappings[j].prefix
	})
	return r, nil
}

// addPSR4 accepts both forms composer allows: "Prefix\\": "src/" and
// "Prefix\\": ["src/", "lib/"].
func (r *Resolver) addPSR4(entries map[string]json.RawMessage) {
	for prefix, raw := range entries {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			r.addMapping(prefix, single)
			continue
		}
		var multi []string
		if err := json.Unmarshal(raw, &multi); err == nil {
			for _, dir := range multi {
				r.addMapping(prefix, dir)
			}
		}
	}
}

func (r *Resolver) addMapping(prefix, dir string) {
	prefix = strings.TrimSuffix(prefix, "\\")
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	r.mappings = append(r.mappings, mapping{prefix: prefix, dir: dir})
}

// Loaded reports whether any PSR-4 mapping was found.
func (r *Resolver) Loaded() bool { return r.loaded }

// Root returns the absolute project root.
func (r *Resolver) Root() string { return r.root }

// Resolve returns the namespace a class defined in path should declare.
// ok is false when no mapping covers the path.
func (r *Resolver) Resolve(path string) (string, bool) {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return "", false
	}

	dir := ""
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		dir = rel[:i]
	}

	for _, m := range r.mappings {
		if m.dir == dir {
			return m.prefix, true
		}
		if m.dir == "" {
			if dir != "" {
				return m.prefix + "\\" + strings.ReplaceAll(dir, "/", "\\"), true
			}
			return m.prefix, true
		}
		if strings.HasPrefix(dir, m.dir+"/") {
			sub := strings.ReplaceAll(dir[len(m.dir)+1:], "/", "\\")
			return m.prefix + "\\" + sub, true
		}
	}
	return "", false
}

// FileForFQN returns the absolute path where the class named by fqn should
// live under PSR-4. ok is false when no mapping covers the namespace.
func (r *Resolver) FileForFQN(fqn string) (string, bool) {
	fqn = strings.TrimPrefix(fqn, "\\")
	i := strings.LastIndex(fqn, "\\")
	ns, class := "", fqn
	if i >= 0 {
		ns, class = fqn[:i], fqn[i+1:]
	}

	for _, m := range r.mappings {
		if ns == m.prefix {
			return filepath.Join(r.root, filepath.FromSlash(m.dir), class+".php"), true
		}
		if strings.HasPrefix(ns, m.prefix+"\\") {
			sub := strings.ReplaceAll(ns[len(m.prefix)+1:], "\\", "/")
			return filepath.Join(r.root, filepath.FromSlash(m.dir), filepath.FromSlash(sub), class+".php"), true
		}
	}
	return "", false
}

// String describes the loaded mappings for debug output.
func (r *Resolver) String() string {
	if !r.loaded {
		return "composer: no psr-4 mappings"
	}
	parts := make([]string, 0, len(r.mappings))
	for _, m := range r.mappings {
		parts = append(parts, fmt.Sprintf("%s=>%s", m.prefix, m.dir))
	}
	return "composer: " + strings.Join(parts, " ")
}
