package lua

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/opdispatch/internal/logging"
)

// OpenLog returns the loader for the log module, which writes to logger.
//
//	log.info("loaded user", { id = 7 })
//
// The optional second argument is rendered as sorted key=value pairs.
func OpenLog(logger logging.Interface) lua.LGFunction {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"debug": logFunc(logger.Debug),
			"info":  logFunc(logger.Info),
			"warn":  logFunc(logger.Warn),
			"error": logFunc(logger.Error),
		})
		L.Push(mod)
		return 1
	}
}

func logFunc(emit func(msg string, args ...any)) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		if fields, ok := L.Get(2).(*lua.LTable); ok {
			msg += " " + formatFields(NewBridge(L), fields)
		}
		emit("%s", msg)
		return 0
	}
}

func formatFields(b *Bridge, t *lua.LTable) string {
	var parts []string
	t.ForEach(func(k, v lua.LValue) {
		parts = append(parts, fmt.Sprintf("%s=%v", k.String(), b.ToGoValue(v)))
	})
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}
