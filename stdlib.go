package docdrift

import (
	_ "embed"
	"strings"
	"sync"
)

//go:embed stdlib_modules.txt
var stdlibModulesTxt string

var (
	stdlibModules map[string]bool
	stdlibOnce    sync.Once
)

func loadStdlib() {
	stdlibOnce.Do(func() {
		stdlibModules = make(map[string]bool)
		for _, line := range strings.Split(stdlibModulesTxt, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			stdlibModules[line] = true
		}
	})
}

// IsStdlib reports whether the top-level component of a dotted module path
// is a Python standard library module.
func IsStdlib(module string) bool {
	loadStdlib()
	top, _, _ := strings.Cut(module, ".")
	return stdlibModules[top]
}
