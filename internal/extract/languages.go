package extract

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// langSpec describes how to extract definitions and calls from one
// language: the grammar, the tree-sitter queries, and the naming
// conventions that decide visibility.
type langSpec struct {
	name      string
	grammar   *sitter.Language
	defsQuery string
	callQuery string
	// classContainer is the node type that makes a nested function a
	// method (empty when the grammar marks methods directly).
	classContainer string
	exported       func(name string) bool
}

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".go":  "go",
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
}

// Extensions returns every file extension with a registered language,
// sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extToLanguage))
	for ext := range extToLanguage {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

var (
	specs     map[string]*langSpec
	specsOnce sync.Once
)

func initSpecs() {
	specsOnce.Do(func() {
		goSpec := &langSpec{
			name:    "go",
			grammar: golang.GetLanguage(),
			defsQuery: `
(function_declaration name: (identifier) @name) @func
(method_declaration name: (field_identifier) @name) @method
(type_declaration (type_spec name: (type_identifier) @name)) @class
`,
			callQuery: `
(call_expression function: (identifier) @callee) @call
(call_expression function: (selector_expression field: (field_identifier) @callee)) @call
`,
			exported: func(name string) bool {
				return name != "" && name[0] >= 'A' && name[0] <= 'Z'
			},
		}
		pySpec := &langSpec{
			name:    "python",
			grammar: python.GetLanguage(),
			defsQuery: `
(function_definition name: (identifier) @name) @func
(class_definition name: (identifier) @name) @class
`,
			callQuery: `
(call function: (identifier) @callee) @call
(call function: (attribute attribute: (identifier) @callee)) @call
`,
			classContainer: "class_definition",
			exported:       func(name string) bool { return !strings.HasPrefix(name, "_") },
		}
		jsSpec := &langSpec{
			name:    "javascript",
			grammar: javascript.GetLanguage(),
			defsQuery: `
(function_declaration name: (identifier) @name) @func
(method_definition name: (property_identifier) @name) @method
(class_declaration name: (identifier) @name) @class
(variable_declarator name: (identifier) @name value: (arrow_function)) @func
`,
			callQuery: `
(call_expression function: (identifier) @callee) @call
(call_expression function: (member_expression property: (property_identifier) @callee)) @call
`,
			exported: func(name string) bool { return !strings.HasPrefix(name, "_") },
		}
		tsSpec := &langSpec{}
		*tsSpec = *jsSpec
		tsSpec.name = "typescript"
		tsSpec.grammar = ts.GetLanguage()

		specs = map[string]*langSpec{
			"go":         goSpec,
			"python":     pySpec,
			"javascript": jsSpec,
			"typescript": tsSpec,
		}
	})
}

// LanguageForFile returns the canonical language name for a file path
// based on its extension. Returns ("", false) for unrecognized
// extensions.
func LanguageForFile(path string) (string, bool) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

func specForLanguage(lang string) (*langSpec, bool) {
	initSpecs()
	s, ok := specs[lang]
	return s, ok
}
