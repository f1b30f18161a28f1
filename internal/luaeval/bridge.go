package luaeval

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// toLuaValue converts a Go value to a Lua value.
func toLuaValue(L *lua.LState, v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		arr := L.NewTable()
		for i, elem := range val {
			arr.RawSetInt(i+1, toLuaValue(L, elem))
		}
		return arr
	case map[string]any:
		tbl := L.NewTable()
		for k, elem := range val {
			tbl.RawSetString(k, toLuaValue(L, elem))
		}
		return tbl
	default:
		// Unknown types are exposed by their string representation.
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// toGoValue converts a Lua value to a Go value.
func toGoValue(lv lua.LValue) any {
	return toGoValueVisited(lv, make(map[*lua.LTable]bool))
}

// toGoValueVisited converts a Lua value, tracking visited tables to
// break circular references.
func toGoValueVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	if lv == nil {
		return nil
	}

	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	case *lua.LNilType:
		return nil
	default:
		return nil
	}
}

// tableToGo converts a Lua table to a Go slice or map.
func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	// A table with contiguous 1..n integer keys converts to a slice.
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})
	if count != maxN {
		isArray = false
	}

	if isArray && maxN > 0 {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = toGoValueVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = toGoValueVisited(v, visited)
	})
	return m
}

// Truthy reports whether a converted evaluation result counts as true
// under Lua semantics: nil and false are false, everything else true.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
