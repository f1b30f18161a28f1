package luaeval

import (
	lua "github.com/yuin/gopher-lua"
)

// installSandbox restricts the Lua state to safe, side-effect-free
// evaluation. Debug expressions only need the value-manipulation
// stdlib (string, table, math); everything that can reach the
// filesystem, the process, or arbitrary code loading is removed.
func installSandbox(L *lua.LState) {
	dangerous := []string{
		"dofile",     // load and execute file
		"loadfile",   // load file as function
		"load",       // load string as function
		"loadstring", // deprecated alias of load
		"print",      // writes to stdout; console output goes through entries
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// No os, io, or module loading for expressions.
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("require", lua.LNil)

	pkg := L.GetGlobal("package")
	if pkgTable, ok := pkg.(*lua.LTable); ok {
		L.SetField(pkgTable, "path", lua.LString(""))
		L.SetField(pkgTable, "cpath", lua.LString(""))
	}
}
