package node

import (
	"fmt"
	"go/ast"
	"strings"

	"golang.org/x/tools/go/packages"
)

// forbiddenPurityImports lists packages a Compute or Reducer node file must
// never import. Reaching any of these from a file that declares a
// ComputeFunc/ReducerFunc value would let a "pure" node silently block, hit
// the network, or touch the database - exactly what the tagged-union split
// between Compute/Reducer and Effect/Orchestrator exists to rule out.
var forbiddenPurityImports = map[string]bool{
	"net":                           true,
	"net/http":                      true,
	"os":                            true,
	"database/sql":                  true,
	"github.com/segmentio/kafka-go": true,
	"github.com/lib/pq":             true,
}

// PurityViolation names one file that declares a pure node kind but imports
// a forbidden package.
type PurityViolation struct {
	File   string
	Import string
}

// AuditPurity loads the package at dir with golang.org/x/tools/go/packages
// (a full import-graph walk, not a textual grep) and fails if a file
// declaring a ComputeFunc or ReducerFunc value imports anything in
// forbiddenPurityImports. cmd/learner calls it at startup before
// wiring.BuildRegistry/envelope.Build, the only binary that constructs the
// dispatch registry over this package, so a purity regression fails the
// process rather than surfacing as a runtime deadlock. cmd/patterngate
// never imports internal/dispatch/node and has nothing for this audit to
// check.
func AuditPurity(dir string) ([]PurityViolation, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedSyntax | packages.NeedTypes,
		Dir:  dir,
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("node: failed to load package at %s: %w", dir, err)
	}

	var violations []PurityViolation

	for _, pkg := range pkgs {
		for _, err := range pkg.Errors {
			return nil, fmt.Errorf("node: %s: %w", dir, err)
		}

		for _, file := range pkg.Syntax {
			if !declaresPureNode(file) {
				continue
			}

			filename := pkg.Fset.Position(file.Pos()).Filename

			for _, imp := range file.Imports {
				importPath := strings.Trim(imp.Path.Value, `"`)
				if forbiddenPurityImports[importPath] {
					violations = append(violations, PurityViolation{File: filename, Import: importPath})
				}
			}
		}
	}

	return violations, nil
}

// declaresPureNode reports whether file contains a top-level var whose type
// expression mentions ComputeFunc or ReducerFunc, e.g.
// "var PatternMatchingCompute ComputeFunc[MatchInput, MatchResult] = ...".
func declaresPureNode(file *ast.File) bool {
	found := false

	ast.Inspect(file, func(n ast.Node) bool {
		valueSpec, ok := n.(*ast.ValueSpec)
		if !ok || valueSpec.Type == nil {
			return true
		}

		if mentionsPureKind(valueSpec.Type) {
			found = true
		}

		return true
	})

	return found
}

func mentionsPureKind(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.IndexListExpr:
		return mentionsPureKind(t.X)
	case *ast.IndexExpr:
		return mentionsPureKind(t.X)
	case *ast.Ident:
		return t.Name == "ComputeFunc" || t.Name == "ReducerFunc"
	default:
		return false
	}
}
