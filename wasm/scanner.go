//go:build wasm

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

// newScanner creates a scanner from signature YAML, or the builtin
// signatures for "" and "builtin".
// JS: SigscanNewScanner(signaturesYAML) -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("signaturesYAML argument required")
	}

	var sigs []*types.Signature
	if text := args[0].String(); text != "" && text != "builtin" {
		loaded, err := signature.NewLoader().LoadBytes([]byte(text))
		if err != nil {
			return errorResult("failed to load signatures: " + err.Error())
		}
		if err := signature.ValidateAll(loaded); err != nil {
			return errorResult("invalid signatures: " + err.Error())
		}
		sigs = loaded
	}

	core, err := scanner.NewCore(scanner.Options{Signatures: sigs, Logger: quietLogger})
	if err != nil {
		return errorResult("failed to create scanner: " + err.Error())
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

// scan scans one haystack, a Uint8Array or a string.
// JS: SigscanScan(handle, content, source) -> JSON result or {error}
func scan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and content arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}
	source := ""
	if len(args) > 2 {
		source = args[2].String()
	}

	result, err := core.Scan(context.Background(), bytesArg(args[1]), source)
	if err != nil {
		return errorResult("scan failed: " + err.Error())
	}
	return marshal(result)
}

// scanBatch scans several items given as JSON, contents base64.
// JS: SigscanScanBatch(handle, itemsJSON) -> JSON results or {error}
func scanBatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and itemsJSON arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	var items []scanner.ContentItem
	if err := json.Unmarshal([]byte(args[1].String()), &items); err != nil {
		return errorResult("failed to parse items JSON: " + err.Error())
	}

	result, err := core.ScanBatch(context.Background(), items)
	if err != nil {
		return errorResult("batch scan failed: " + err.Error())
	}
	return marshal(result)
}

// find reports the first offset of each pattern in a haystack.
// JS: SigscanFind(handle, haystack, patternsJSON) -> JSON {offsets} or {error}
func find(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("handle, haystack and patternsJSON arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	var patterns []string
	if err := json.Unmarshal([]byte(args[2].String()), &patterns); err != nil {
		return errorResult("failed to parse patterns JSON: " + err.Error())
	}

	result, err := core.Find(context.Background(), bytesArg(args[1]), patterns)
	if err != nil {
		return errorResult("find failed: " + err.Error())
	}
	return marshal(result)
}

// closeScanner closes a scanner and releases resources.
// JS: SigscanCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	handle := args[0].Int()

	scannersMu.Lock()
	core, ok := scanners[handle]
	if ok {
		delete(scanners, handle)
	}
	scannersMu.Unlock()

	if !ok {
		return errorResult("invalid scanner handle")
	}

	core.Close()
	return nil
}

// builtinSignature is the JS view of a signature.
type builtinSignature struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// getBuiltinSignatures returns the builtin signatures as JSON.
// JS: SigscanGetBuiltinSignatures() -> JSON array
func getBuiltinSignatures(this js.Value, args []js.Value) interface{} {
	sigs, err := scanner.GetBuiltinSignatures()
	if err != nil {
		return errorResult("failed to load builtin signatures: " + err.Error())
	}

	out := make([]builtinSignature, len(sigs))
	for i, s := range sigs {
		out[i] = builtinSignature{ID: s.ID, Name: s.Name, Pattern: s.Pattern.String()}
	}
	return marshal(out)
}

func lookup(handle int) (*scanner.Core, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	core, ok := scanners[handle]
	return core, ok
}

// bytesArg copies a Uint8Array argument. Anything else is taken as a
// string.
func bytesArg(v js.Value) []byte {
	if v.Type() == js.TypeObject && v.InstanceOf(js.Global().Get("Uint8Array")) {
		b := make([]byte, v.Get("length").Int())
		js.CopyBytesToGo(b, v)
		return b
	}
	return []byte(v.String())
}

func marshal(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal results: " + err.Error())
	}
	return string(data)
}
