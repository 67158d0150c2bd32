package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CollectFiles resolves the input path into a list of files to process.
// It supports direct file paths, directories, glob patterns and
// ';'-separated lists of those. Hidden files found while walking a
// directory are ignored.
func CollectFiles(input string, recursive bool) ([]string, error) {
	inputs := splitInputs(input)
	if len(inputs) == 0 {
		return nil, fmt.Errorf("input path is empty")
	}

	unique := make(map[string]struct{})
	var results []string

	addFile := func(path string) {
		if _, exists := unique[path]; !exists {
			unique[path] = struct{}{}
			results = append(results, path)
		}
	}

	for _, in := range inputs {
		matches, err := expandInput(in)
		if err != nil {
			return nil, err
		}

		for _, candidate := range matches {
			info, err := os.Stat(candidate)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", candidate, err)
			}
			if info.IsDir() {
				err = walkDir(candidate, recursive, addFile)
				if err != nil {
					return nil, err
				}
				continue
			}
			addFile(candidate)
		}
	}

	return results, nil
}

func splitInputs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandInput(input string) ([]string, error) {
	if containsGlob(input) {
		matches, err := filepath.Glob(input)
		if err != nil {
			return nil, fmt.Errorf("expand glob: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files matched pattern %q", input)
		}
		return matches, nil
	}
	return []string{input}, nil
}

func containsGlob(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// CollectTargets collects files and keeps only the supported media kinds.
// The second return value lists paths that were skipped as unsupported.
func CollectTargets(input string, recursive bool) ([]Target, []string, error) {
	files, err := CollectFiles(input, recursive)
	if err != nil {
		return nil, nil, err
	}

	var (
		targets     []Target
		unsupported []string
	)
	for _, path := range files {
		if IsSidecar(path) {
			continue
		}
		kind := Classify(path)
		if kind == KindUnknown {
			unsupported = append(unsupported, path)
			continue
		}
		targets = append(targets, Target{Path: path, Kind: kind})
	}
	return targets, unsupported, nil
}

func walkDir(root string, recursive bool, add func(string)) error {
	if recursive {
		return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				add(path)
			}
			return nil
		})
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", root, err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && !isHidden(entry.Name()) {
			add(filepath.Join(root, entry.Name()))
		}
	}
	return nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
