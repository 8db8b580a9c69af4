package jj

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoWorkspace means no .jj directory was found above the start path.
var ErrNoWorkspace = errors.New("not inside a jj workspace")

// FindWorkspace walks up from dir to the directory holding .jj.
func FindWorkspace(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for cur := abs; ; {
		info, err := os.Stat(filepath.Join(cur, ".jj"))
		if err == nil && info.IsDir() {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%s: %w", abs, ErrNoWorkspace)
		}
		cur = parent
	}
}

// OpHeadsDir returns the directory whose entries change whenever an
// operation is committed. In secondary workspaces .jj/repo is a file holding
// the path of the shared repository.
func OpHeadsDir(root string) (string, error) {
	repo := filepath.Join(root, ".jj", "repo")
	info, err := os.Stat(repo)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		raw, err := os.ReadFile(repo)
		if err != nil {
			return "", err
		}
		target := strings.TrimSpace(string(raw))
		if !filepath.IsAbs(target) {
			target = filepath.Join(root, ".jj", target)
		}
		repo = target
	}
	return filepath.Join(repo, "op_heads", "heads"), nil
}
