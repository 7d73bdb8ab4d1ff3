// Package catalog locates procedure documents on disk and lists them.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/procrun/pkg/schema"
)

// EnvDir names the environment variable that sets the procedure directory.
const EnvDir = "PROCEDURE_DIR"

// DefaultDir is used when neither a flag nor EnvDir is set.
const DefaultDir = "./procedures"

// Extensions recognised as procedure documents, in lookup order.
var Extensions = []string{".yml", ".yaml"}

// Dir returns the procedure directory: override if non-empty, else
// $PROCEDURE_DIR, else DefaultDir.
func Dir(override string) string {
	if override != "" {
		return override
	}
	if d := os.Getenv(EnvDir); d != "" {
		return d
	}
	return DefaultDir
}

// NotFoundError reports a procedure that could not be resolved.
type NotFoundError struct {
	Name string
	Dir  string // absolute directory that was searched
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("procedure not found: %s (searched in %s)", e.Name, e.Dir)
}

// Resolve turns a path or a procedure name into a document path. An existing
// path wins; otherwise name is looked up under dir, trying each extension
// when name has none.
func Resolve(name, dir string) (string, error) {
	if isFile(name) {
		return name, nil
	}
	candidate := filepath.Join(dir, name)
	if !hasExtension(name) {
		for _, ext := range Extensions {
			if isFile(candidate + ext) {
				return candidate + ext, nil
			}
		}
	}
	if isFile(candidate) {
		return candidate, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return "", &NotFoundError{Name: name, Dir: abs}
}

// Entry is one listed procedure.
type Entry struct {
	ID          string `json:"id"` // file name without extension; accepted by Resolve
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// Problem is a document that could not be read while listing.
type Problem struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(p.Path), p.Err)
}

// ErrNoDir is returned by List when the directory does not exist.
var ErrNoDir = errors.New("procedure directory not found")

// List reads the name and description of every procedure in dir, in file
// name order. Malformed documents are reported as problems and skipped; they
// never stop the listing.
func List(dir string) ([]Entry, []Problem, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoDir, dir)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read procedure directory: %w", err)
	}

	var entries []Entry
	var problems []Problem
	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name()) {
			continue
		}
		path := filepath.Join(dir, f.Name())
		h, err := schema.LoadHeader(path)
		if err != nil {
			problems = append(problems, Problem{Path: path, Err: err})
			continue
		}
		e := Entry{
			ID:          strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())),
			Name:        h.Name,
			Description: h.Description,
			Path:        path,
		}
		if e.Name == "" {
			e.Name = "Unnamed procedure"
		}
		if e.Description == "" {
			e.Description = "No description"
		}
		entries = append(entries, e)
	}
	return entries, problems, nil
}

func hasExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
