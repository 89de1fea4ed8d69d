package inject

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/cdp-inject/launcher/src/cdp"
	"github.com/cdp-inject/launcher/src/options"
)

//go:embed payload.js
var defaultPayload string

// the renderer's main world is always the first context created
const mainContext = proto.RuntimeExecutionContextID(1)

// BuildCommand wraps script so that it runs in the target with dir as its
// only argument.
func BuildCommand(method, script, dir string) (cdp.Command, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return nil, fmt.Errorf("empty script")
	}

	switch method {
	case options.MethodCallFunctionOn, "":
		return proto.RuntimeCallFunctionOn{
			FunctionDeclaration: script,
			Arguments: []*proto.RuntimeCallArgument{
				{Value: gson.New(dir)},
			},
			ExecutionContextID: mainContext,
		}, nil
	case options.MethodEvaluate:
		arg, err := json.Marshal(dir)
		if err != nil {
			return nil, err
		}
		script = strings.TrimSuffix(script, ";")
		return proto.RuntimeEvaluate{
			Expression: "(" + script + ")(" + string(arg) + ")",
			ContextID:  mainContext,
		}, nil
	}
	return nil, fmt.Errorf("unsupported method %q", method)
}

func loadScript(path string) (string, error) {
	if path == "" {
		return defaultPayload, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

// the directory argument defaults to where the launcher itself lives
func resolveDirectory(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate launcher executable: %w", err)
	}
	return filepath.Dir(exe), nil
}
