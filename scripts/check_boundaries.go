//go:build ignore

// check_boundaries enforces the layering rules of contexts/<context>/<service>:
// domain imports only its own domain, ports add contracts, application adds
// ports, and no layer reaches into another service. Test files are exempt.
//
//	go run scripts/check_boundaries.go [-root .]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

type layerRule struct {
	name    string
	allowed func(servicePrefix string) []string
}

var layerRules = map[string]layerRule{
	"domain": {
		name: "domain",
		allowed: func(servicePrefix string) []string {
			return []string{servicePrefix + "/domain"}
		},
	},
	"ports": {
		name: "ports",
		allowed: func(servicePrefix string) []string {
			return []string{servicePrefix + "/domain"}
		},
	},
	"application": {
		name: "application",
		allowed: func(servicePrefix string) []string {
			return []string{
				servicePrefix + "/application",
				servicePrefix + "/domain",
				servicePrefix + "/ports",
			}
		},
	},
}

func main() {
	root := flag.String("root", ".", "repository root containing go.mod")
	flag.Parse()

	modulePath, err := readModulePath(filepath.Join(*root, "go.mod"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	violations := collectViolations(*root, modulePath)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func readModulePath(goMod string) (string, error) {
	file, err := os.Open(goMod)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s: no module directive", goMod)
}

func collectViolations(root string, modulePath string) []violation {
	var violations []violation
	contextsDir := filepath.Join(root, "contexts")

	_ = filepath.WalkDir(contextsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		normalized := filepath.ToSlash(rel)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 {
			return nil
		}

		servicePrefix := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[1], parts[2])
		violations = append(violations, validateFile(path, normalized, parts[3], modulePath, servicePrefix)...)
		return nil
	})

	return violations
}

func validateFile(path, normalizedPath, layer, modulePath, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		line := fset.Position(imp.Pos()).Line
		add := func(rule string) {
			violations = append(violations, violation{File: normalizedPath, Line: line, Import: importPath, Rule: rule})
		}

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
			add("cross-module imports are forbidden")
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		if strings.Contains(importPath, "/adapters/") {
			add(rule.name + " must not import adapters")
		}
		if hasPrefix(importPath, modulePath+"/internal") {
			add(rule.name + " must not import runtime infrastructure")
		}

		allowed := rule.allowed(servicePrefix)
		if layer != "domain" {
			allowed = append(allowed, modulePath+"/contracts")
		}
		if !isStdlib(importPath, modulePath) && !isAllowed(importPath, allowed) {
			add(rule.name + " import is outside explicit allowlist")
		}
	}

	return violations
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string, modulePath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
