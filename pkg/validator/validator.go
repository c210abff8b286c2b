// Package validator checks flow files before a run. It parses every flow
// once, resolves runFlow references, and collects all problems instead of
// stopping at the first.
package validator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pookie-qa/pookie-runner/pkg/config"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// TestCases are the flow files to run, in execution order. Flows only
	// reached through runFlow are validated but not listed.
	TestCases []string
	// Flows holds the parsed flow for each entry of TestCases.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string

	parsed map[string]*flow.Flow
	failed map[string]bool
}

// New creates a new Validator. Tag filters given here are merged with the
// ones from a directory's workspace config.yaml.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates a file or directory.
func (v *Validator) Validate(path string) *Result {
	v.parsed = make(map[string]*flow.Flow)
	v.failed = make(map[string]bool)

	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	includeTags, excludeTags := v.includeTags, v.excludeTags
	var files []string

	if info.IsDir() {
		ws, err := config.LoadWorkspaceFromDir(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("invalid workspace config: %v", err),
			})
			return result
		}
		includeTags = append(append([]string(nil), includeTags...), ws.IncludeTags...)
		excludeTags = append(append([]string(nil), excludeTags...), ws.ExcludeTags...)

		if len(ws.Flows) > 0 {
			files, err = matchPatterns(path, ws.Flows)
		} else {
			files, err = topLevelFlows(path)
		}
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		f := v.validateFile(file, result, nil)
		if f == nil {
			continue
		}
		if !flow.ShouldIncludeFlow(f, includeTags, excludeTags) {
			continue
		}
		result.TestCases = append(result.TestCases, file)
		result.Flows = append(result.Flows, f)
	}

	return result
}

func isFlowFile(path string) bool {
	if config.IsWorkspaceFile(path) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// topLevelFlows lists flow files directly inside dir. Subdirectories hold
// shared subflows and are only reached through runFlow.
func topLevelFlows(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isFlowFile(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

// allFlows lists flow files anywhere under dir.
func allFlows(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isFlowFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// matchPatterns resolves workspace flow patterns relative to dir.
// "**" selects every flow, "**/<glob>" matches file names at any depth, and
// any other pattern is a glob whose matching directories are searched
// recursively.
func matchPatterns(dir string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(paths ...string) {
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
	}

	for _, pattern := range patterns {
		switch {
		case pattern == "**":
			all, err := allFlows(dir)
			if err != nil {
				return nil, err
			}
			add(all...)

		case strings.HasPrefix(pattern, "**/"):
			namePattern := strings.TrimPrefix(pattern, "**/")
			if _, err := filepath.Match(namePattern, ""); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			all, err := allFlows(dir)
			if err != nil {
				return nil, err
			}
			for _, p := range all {
				if ok, _ := filepath.Match(namePattern, filepath.Base(p)); ok {
					add(p)
				}
			}

		default:
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				info, err := os.Stat(m)
				if err != nil {
					continue
				}
				if info.IsDir() {
					nested, err := allFlows(m)
					if err != nil {
						return nil, err
					}
					add(nested...)
					continue
				}
				if isFlowFile(m) {
					add(m)
				}
			}
		}
	}
	return files, nil
}

// validateFile parses filePath and its runFlow dependencies. It returns nil
// when the file itself could not be parsed.
func (v *Validator) validateFile(filePath string, result *Result, chain []string) *flow.Flow {
	for _, ancestor := range chain {
		if ancestor == filePath {
			cycle := append(append([]string(nil), chain...), filePath)
			result.Errors = append(result.Errors, &ValidationError{
				File:    filePath,
				Message: fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
			})
			return nil
		}
	}

	if v.failed[filePath] {
		return nil
	}
	// A parsed file off the current chain has been fully checked already
	if f, ok := v.parsed[filePath]; ok {
		return f
	}

	f, err := flow.ParseFile(filePath)
	if err != nil {
		v.failed[filePath] = true
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return nil
	}
	v.parsed[filePath] = f

	newChain := append(append([]string(nil), chain...), filePath)
	v.validateSteps(f.Config.OnFlowStart, filePath, result, newChain)
	v.validateSteps(f.Steps, filePath, result, newChain)
	v.validateSteps(f.Config.OnFlowComplete, filePath, result, newChain)

	return f
}

// validateSteps checks nested commands, runFlow targets and script files.
func (v *Validator) validateSteps(steps []flow.Step, parentFile string, result *Result, chain []string) {
	parentDir := filepath.Dir(parentFile)

	for _, step := range steps {
		switch s := step.(type) {
		case *flow.RunFlowStep:
			if s.File != "" {
				v.validateFile(resolveFilePath(parentDir, s.File), result, chain)
			}
			v.validateSteps(s.Steps, parentFile, result, chain)

		case *flow.RepeatStep:
			v.validateSteps(s.Steps, parentFile, result, chain)

		case *flow.RetryStep:
			if s.File != "" {
				v.validateFile(resolveFilePath(parentDir, s.File), result, chain)
			}
			v.validateSteps(s.Steps, parentFile, result, chain)

		case *flow.RunScriptStep:
			script := s.ScriptPath()
			if strings.HasSuffix(script, ".js") {
				if _, err := os.Stat(resolveFilePath(parentDir, script)); err != nil {
					result.Errors = append(result.Errors, &ValidationError{
						File:    parentFile,
						Message: fmt.Sprintf("runScript %s: %v", script, err),
					})
				}
			}

		case *flow.UnsupportedStep:
			result.Errors = append(result.Errors, &ValidationError{
				File:    parentFile,
				Message: s.Describe(),
			})
		}
	}
}

// resolveFilePath resolves a file path relative to a base directory.
func resolveFilePath(baseDir, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(baseDir, filePath)
}
