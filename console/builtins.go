package console

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
)

// Built-in command names.
const (
	cmdBreakpoints = ":breakpoints"
	cmdClear       = ":clear"
	cmdMemDump     = ":memdump"
	cmdHelp        = ":help"
)

// runBuiltin executes one of the engine's built-in commands.
func (e *Engine) runBuiltin(entry Entry, input string) Entry {
	switch input {
	case cmdBreakpoints:
		return e.listBreakpoints(entry)
	case cmdClear:
		e.ClearHistory()
		entry.Kind = KindVoid
		return entry
	case cmdMemDump:
		return e.dumpMemory(entry)
	case cmdHelp:
		entry.Kind = KindValue
		entry.Value = strings.Join([]string{
			cmdBreakpoints + "  list registered breakpoints",
			cmdClear + "        clear console history",
			cmdMemDump + "      dump a memory snapshot",
			cmdHelp + "         show this help",
		}, "\n")
		return entry
	default:
		entry.Kind = KindError
		entry.Err = fmt.Errorf("%w: %s", ErrUnknownCommand, input)
		return entry
	}
}

// listBreakpoints renders the registered breakpoints one per line.
func (e *Engine) listBreakpoints(entry Entry) Entry {
	if e.breakpoints == nil {
		entry.Kind = KindError
		entry.Err = fmt.Errorf("%w: %s is not wired", ErrUnknownCommand, cmdBreakpoints)
		return entry
	}

	bps := e.breakpoints.All()
	if len(bps) == 0 {
		entry.Kind = KindValue
		entry.Value = "no breakpoints"
		return entry
	}

	lines := make([]string, len(bps))
	for i, bp := range bps {
		cond := bp.Condition
		if cond == "" {
			cond = "<always>"
		}
		lines[i] = fmt.Sprintf("#%d %s  condition=%q  enabled=%t  hits=%d",
			bp.ID, bp.Location, cond, bp.Enabled, bp.HitCount)
	}
	entry.Kind = KindValue
	entry.Value = strings.Join(lines, "\n")
	return entry
}

// dumpMemory renders a point-in-time memory snapshot as JSON.
func (e *Engine) dumpMemory(entry Entry) Entry {
	if e.memory == nil {
		entry.Kind = KindError
		entry.Err = fmt.Errorf("%w: %s is not wired", ErrUnknownCommand, cmdMemDump)
		return entry
	}

	sample, err := e.memory.SampleNow()
	if err != nil {
		entry.Kind = KindError
		entry.Err = err
		return entry
	}

	doc := "{}"
	doc, _ = sjson.Set(doc, "timestamp", sample.Timestamp.Format("2006-01-02T15:04:05.000"))
	doc, _ = sjson.Set(doc, "usedBytes", sample.UsedBytes)
	doc, _ = sjson.Set(doc, "heapObjects", sample.HeapObjects)

	entry.Kind = KindValue
	entry.Value = doc
	return entry
}
