package deliver_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"testing"
	"unicode"
)

func TestDocCommentsASCII(t *testing.T) {
	names, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}
	more, _ := filepath.Glob(filepath.Join("cmd", "*", "*.go"))
	fset := token.NewFileSet()
	for _, name := range append(names, more...) {
		file, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		if err != nil {
			t.Fatal(err)
		}
		for _, group := range file.Comments {
			for _, c := range group.List {
				for _, r := range c.Text {
					if r > unicode.MaxASCII {
						t.Errorf("%s: non-ascii comment %q", fset.Position(c.Pos()), c.Text)
						break
					}
				}
			}
		}
	}
}
