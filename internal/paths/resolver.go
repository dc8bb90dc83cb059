// Package paths turns user-supplied image, config, checkpoint, and output
// paths into absolute paths.
//
// Resolution is pure: the Resolver is handed the directory the user invoked
// the tool from and never reads or changes the process working directory
// itself, so every downstream call receives absolute paths only.
package paths

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// NotFoundError reports a path that did not exist in any searched location.
type NotFoundError struct {
	// Kind is "image", "config", or "checkpoint".
	Kind string
	// Path is the path as the user supplied it.
	Path string
	// Searched lists the directories (or, for absolute paths, the file)
	// that were checked, in search order.
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s (searched: %s)", e.Kind, e.Path, strings.Join(e.Searched, ", "))
}

// Unwrap lets errors.Is(err, fs.ErrNotExist) match.
func (e *NotFoundError) Unwrap() error { return fs.ErrNotExist }

// Resolver holds the fixed search roots.
type Resolver struct {
	// WorkDir is the directory the tool was invoked from. Must be absolute.
	WorkDir string
	// RepoRoot is the fixed external GroundingDINO checkout.
	RepoRoot string
	// SentinelDir, when equal to filepath.Base(WorkDir), adds the parent of
	// WorkDir to the image search.
	SentinelDir string
}

// Resolved is the outcome of resolving one request's inputs.
type Resolved struct {
	Image      string
	Config     string
	Checkpoint string
}

// NewResolver builds a Resolver rooted at workDir. An empty workDir uses the
// current process directory, captured once here.
func NewResolver(workDir, repoRoot, sentinel string) (*Resolver, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = wd
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to make %s absolute: %w", workDir, err)
	}
	root := repoRoot
	if root != "" {
		if root, err = filepath.Abs(root); err != nil {
			return nil, fmt.Errorf("failed to make %s absolute: %w", repoRoot, err)
		}
	}
	return &Resolver{WorkDir: abs, RepoRoot: root, SentinelDir: sentinel}, nil
}

// Resolve resolves all three model inputs. The image is checked first so a
// missing image is reported before anything else.
func (r *Resolver) Resolve(image, config, checkpoint string) (*Resolved, error) {
	img, err := r.ResolveImage(image)
	if err != nil {
		return nil, err
	}
	cfg, err := r.ResolveAsset("config", config)
	if err != nil {
		return nil, err
	}
	ckpt, err := r.ResolveAsset("checkpoint", checkpoint)
	if err != nil {
		return nil, err
	}
	return &Resolved{Image: img, Config: cfg, Checkpoint: ckpt}, nil
}

// ImageSearchDirs returns the directories a relative image path is looked up
// in, in priority order and without duplicates.
func (r *Resolver) ImageSearchDirs() []string {
	dirs := []string{r.WorkDir}
	if r.SentinelDir != "" && filepath.Base(r.WorkDir) == r.SentinelDir {
		dirs = append(dirs, filepath.Dir(r.WorkDir))
	}
	if r.RepoRoot != "" {
		dirs = append(dirs, r.RepoRoot)
	}
	return dedupe(dirs)
}

// ResolveImage returns the absolute path of the first existing candidate.
func (r *Resolver) ResolveImage(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("image path is empty")
	}
	if filepath.IsAbs(p) {
		clean := filepath.Clean(p)
		if isFile(clean) {
			return clean, nil
		}
		return "", &NotFoundError{Kind: "image", Path: p, Searched: []string{clean}}
	}

	dirs := r.ImageSearchDirs()
	for _, dir := range dirs {
		candidate := filepath.Join(dir, p)
		if isFile(candidate) {
			return candidate, nil
		}
	}
	return "", &NotFoundError{Kind: "image", Path: p, Searched: dirs}
}

// ResolveAsset resolves a config or checkpoint path. Relative paths are
// anchored at RepoRoot (or WorkDir when no root is configured).
func (r *Resolver) ResolveAsset(kind, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%s path is empty", kind)
	}
	var full string
	if filepath.IsAbs(p) {
		full = filepath.Clean(p)
	} else {
		base := r.RepoRoot
		if base == "" {
			base = r.WorkDir
		}
		full = filepath.Join(base, p)
	}
	if !isFile(full) {
		return "", &NotFoundError{Kind: kind, Path: p, Searched: []string{full}}
	}
	return full, nil
}

// OutputDir makes a possibly relative output directory absolute against
// WorkDir. It does not create it.
func (r *Resolver) OutputDir(p string) string {
	if p == "" {
		p = "."
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.WorkDir, p)
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
