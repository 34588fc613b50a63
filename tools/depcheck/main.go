// Command depcheck loads this module's package graph and fails if any
// package outside cmd/, internal/apps or internal/appimage imports
// userlib; imports of cmd/ packages are not checked. userlib is meant to be linked only into the kernel's own
// built-in user programs (internal/apps) and the standalone cmd/*
// harnesses, never pulled into a core kernel package by accident.
// Grounded on biscuit's misc/depgraph tool, which serves the same
// "inspect the module's own dependency graph" role with `go mod graph`;
// depcheck goes one level deeper and loads actual package import edges
// via golang.org/x/tools/go/packages rather than module edges.
package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"
)

const modulePath = "rvcore"

func main() {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		fmt.Fprintf(os.Stderr, "depcheck: %v\n", err)
		os.Exit(1)
	}

	var violations []string
	for _, pkg := range pkgs {
		if allowsUserlib(pkg.PkgPath) {
			continue
		}
		for imp := range pkg.Imports {
			if imp == modulePath+"/userlib" {
				violations = append(violations, fmt.Sprintf("%s imports userlib", pkg.PkgPath))
			}
		}
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depcheck: found userlib imports outside the user-program layer:")
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, "  "+v)
		}
		os.Exit(1)
	}
	fmt.Println("depcheck: OK")
}

// allowsUserlib reports whether pkg is one of the layers permitted to
// depend on userlib: the kernel's own built-in programs, the exec-target
// resolver that wires them up, and every cmd/ harness.
func allowsUserlib(pkgPath string) bool {
	rel := strings.TrimPrefix(pkgPath, modulePath+"/")
	switch {
	case rel == "internal/apps", strings.HasPrefix(rel, "internal/apps/"):
		return true
	case rel == "internal/appimage", strings.HasPrefix(rel, "internal/appimage/"):
		return true
	case strings.HasPrefix(rel, "cmd/"):
		return true
	default:
		return false
	}
}
