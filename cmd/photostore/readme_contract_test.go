package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"photostore/internal/config"
)

var (
	backtickPattern = regexp.MustCompile("`([^`]+)`")
	defaultPattern  = regexp.MustCompile("\\(default `([^`]+)`\\)")
	longFlagPattern = regexp.MustCompile(`--[a-z][a-z-]*`)
	envKeyPattern   = regexp.MustCompile(`PHOTOSTORE_[A-Z0-9_]+`)
	envLiteral      = regexp.MustCompile(`"(PHOTOSTORE_[A-Z0-9_]+)"`)
	routePattern    = regexp.MustCompile(`HandleFunc\("([A-Z]+ [^"]+)"`)
)

func TestReadmeConfigKeysAndDefaults(t *testing.T) {
	bullets := readmeSectionBullets(t, loadReadme(t), "Supported config keys:")
	defaults := config.Default()

	var documented []string
	for _, bullet := range bullets {
		m := backtickPattern.FindStringSubmatch(bullet)
		if m == nil {
			t.Fatalf("config key bullet without a backticked key: %q", bullet)
		}
		key := m[1]
		documented = append(documented, key)

		d := defaultPattern.FindStringSubmatch(bullet)
		if d == nil {
			continue
		}
		actual, err := defaults.Get(key)
		if err != nil {
			t.Fatalf("README documents unknown key %q: %v", key, err)
		}
		// Paths default relative to the working directory at load time.
		if actual == "" {
			continue
		}
		if !sameSetting(d[1], actual) {
			t.Fatalf("README default for %s is %q, config default is %q", key, d[1], actual)
		}
	}

	allowed := slices.Clone(config.AllowedKeys())
	slices.Sort(documented)
	slices.Sort(allowed)
	if !slices.Equal(documented, allowed) {
		t.Fatalf("README config keys mismatch\ndocumented: %v\nallowed:    %v", documented, allowed)
	}
}

func TestReadmeCommandsExistWithDocumentedFlags(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&cfg)

	documented := map[string]bool{}
	for _, line := range readmeFence(t, loadReadme(t), "## Commands") {
		if !strings.HasPrefix(line, "photostore ") {
			continue
		}
		path := commandPath(line)
		documented[path] = true

		cmd, _, err := root.Find(strings.Fields(path))
		if err != nil || cmd == root {
			t.Fatalf("README documents unknown command %q", path)
		}
		for _, flag := range longFlagPattern.FindAllString(line, -1) {
			name := strings.TrimPrefix(flag, "--")
			if cmd.Flags().Lookup(name) == nil && cmd.InheritedFlags().Lookup(name) == nil {
				t.Fatalf("README shows %s on %q but the command has no such flag", flag, path)
			}
		}
	}

	for _, path := range leafCommandPaths(root) {
		if !documented[path] {
			t.Fatalf("command %q is missing from the README Commands section", path)
		}
	}
}

func TestReadmeDocumentsEveryEnvKeyTheCodeReads(t *testing.T) {
	documented := map[string]bool{}
	for _, key := range envKeyPattern.FindAllString(loadReadme(t), -1) {
		documented[key] = true
	}

	read := sourceMatches(t, envLiteral)
	if len(read) == 0 {
		t.Fatal("found no PHOTOSTORE_ env keys in the sources")
	}
	for _, key := range read {
		if !documented[key] {
			t.Fatalf("README does not document %s", key)
		}
	}
}

func TestReadmeListsEveryHTTPRoute(t *testing.T) {
	readme := loadReadme(t)
	routes := sourceMatches(t, routePattern)
	if len(routes) == 0 {
		t.Fatal("found no routes in the server sources")
	}
	for _, route := range routes {
		if !strings.Contains(readme, "`"+route+"`") {
			t.Fatalf("README HTTP API section is missing %s", route)
		}
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func loadReadme(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(repoRoot(t), "README.md"))
	if err != nil {
		t.Fatalf("read README.md: %v", err)
	}
	return string(data)
}

// readmeSectionBullets returns the first run of "- " lines after heading.
func readmeSectionBullets(t *testing.T, readme, heading string) []string {
	t.Helper()
	_, section, ok := strings.Cut(readme, heading)
	if !ok {
		t.Fatalf("README is missing %q", heading)
	}
	var bullets []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			bullets = append(bullets, line)
			continue
		}
		if len(bullets) > 0 {
			break
		}
	}
	if len(bullets) == 0 {
		t.Fatalf("README section %q has no bullets", heading)
	}
	return bullets
}

func readmeFence(t *testing.T, readme, heading string) []string {
	t.Helper()
	_, section, ok := strings.Cut(readme, heading)
	if !ok {
		t.Fatalf("README is missing %q", heading)
	}
	_, fenced, ok := strings.Cut(section, "```bash")
	if !ok {
		t.Fatalf("README %q has no bash fence", heading)
	}
	block, _, ok := strings.Cut(fenced, "```")
	if !ok {
		t.Fatalf("README %q fence is unterminated", heading)
	}
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// commandPath keeps the words after "photostore" up to the first argument
// placeholder or flag.
func commandPath(line string) string {
	var parts []string
	for _, token := range strings.Fields(line)[1:] {
		if strings.ContainsAny(token[:1], "<[-") {
			break
		}
		parts = append(parts, token)
	}
	return strings.Join(parts, " ")
}

func leafCommandPaths(root *cobra.Command) []string {
	var paths []string
	var walk func(cmd *cobra.Command, prefix []string)
	walk = func(cmd *cobra.Command, prefix []string) {
		children := visibleChildren(cmd)
		if len(children) == 0 && len(prefix) > 0 {
			paths = append(paths, strings.Join(prefix, " "))
		}
		for _, child := range children {
			walk(child, append(slices.Clone(prefix), child.Name()))
		}
	}
	walk(root, nil)
	slices.Sort(paths)
	return paths
}

func visibleChildren(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// sourceMatches collects the first capture group of pattern across the
// non-test Go sources of the module.
func sourceMatches(t *testing.T, pattern *regexp.Regexp) []string {
	t.Helper()
	root := repoRoot(t)
	seen := map[string]bool{}
	var out []string
	for _, dir := range []string{"cmd", "internal"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			for _, m := range pattern.FindAllStringSubmatch(string(data), -1) {
				if !seen[m[1]] {
					seen[m[1]] = true
					out = append(out, m[1])
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("walk %s: %v", dir, err)
		}
	}
	slices.Sort(out)
	return out
}

func sameSetting(documented, actual string) bool {
	if documented == actual {
		return true
	}
	a, errA := time.ParseDuration(documented)
	b, errB := time.ParseDuration(actual)
	return errA == nil && errB == nil && a == b
}
