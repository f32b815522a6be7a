package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"
)

// makeModuleExistsFn creates the "module_exists" host function.
//
// module_exists(path) → bool
func makeModuleExistsFn(lookup ModuleLookup) *object.Builtin {
	return object.NewBuiltin("module_exists", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("module_exists", 1, len(args))
		}
		path, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("module_exists: path must be a string, got %s", args[0].Type())
		}
		if lookup == nil {
			return object.False
		}
		_, found := lookup.ModuleSymbols(path.Value())
		return object.NewBool(found)
	})
}

// makeModuleSymbolsFn creates the "module_symbols" host function.
//
// module_symbols(path) → []string, or nil when the module is not indexed
func makeModuleSymbolsFn(lookup ModuleLookup) *object.Builtin {
	return object.NewBuiltin("module_symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("module_symbols", 1, len(args))
		}
		path, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("module_symbols: path must be a string, got %s", args[0].Type())
		}
		if lookup == nil {
			return object.Nil
		}
		names, found := lookup.ModuleSymbols(path.Value())
		if !found {
			return object.Nil
		}
		items := make([]object.Object, 0, len(names))
		for _, name := range names {
			items = append(items, object.NewString(name))
		}
		return object.NewList(items)
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "rule")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "rule")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "rule")
}
