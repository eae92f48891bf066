package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// builtinSpec pairs a ToolSpec (exposed to the model) with the schema
// compiled from its ParamSchema and the handler that executes it.
type builtinSpec struct {
	name        string
	description string
	schema      string
	handler     func(ctx context.Context, args map[string]any, cwd string) (Result, error)
}

// Registry is the one concrete, in-process Dispatcher this repository
// ships: a shell executor, a file reader, and an HTTP fetcher, each with a
// JSON-Schema-validated argument contract. It exists so the tool_exec
// activity boundary is exercisable end-to-end without standing up an
// external tool-registry process, per the "dispatcher is a black box"
// design note — a real deployment may substitute any other Dispatcher.
type Registry struct {
	tools    map[string]builtinSpec
	compiled map[string]*jsonschema.Schema
	client   *http.Client
}

// NewRegistry builds a Registry with the shell/read_file/http_fetch tools
// registered and their schemas compiled eagerly so a malformed schema
// fails at construction rather than on the first call.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		tools:    make(map[string]builtinSpec),
		compiled: make(map[string]*jsonschema.Schema),
		client:   &http.Client{Timeout: 30 * time.Second},
	}

	specs := []builtinSpec{
		{
			name:        "shell",
			description: "Run a shell command and return its combined stdout/stderr and exit code.",
			schema: `{
				"type": "object",
				"properties": {
					"command": {"type": "array", "items": {"type": "string"}, "minItems": 1}
				},
				"required": ["command"]
			}`,
			handler: r.execShell,
		},
		{
			name:        "read_file",
			description: "Read a file's contents, resolved relative to the tool call's working directory.",
			schema: `{
				"type": "object",
				"properties": {
					"path": {"type": "string", "minLength": 1}
				},
				"required": ["path"]
			}`,
			handler: r.readFile,
		},
		{
			name:        "http_fetch",
			description: "Fetch a URL over HTTP GET and return up to 1MB of the response body.",
			schema: `{
				"type": "object",
				"properties": {
					"url": {"type": "string", "minLength": 1}
				},
				"required": ["url"]
			}`,
			handler: r.httpFetch,
		},
	}

	for _, spec := range specs {
		if err := r.register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(spec builtinSpec) error {
	var schemaDoc any
	if err := json.Unmarshal([]byte(spec.schema), &schemaDoc); err != nil {
		return fmt.Errorf("tools: unmarshal schema for %q: %w", spec.name, err)
	}
	c := jsonschema.NewCompiler()
	resourceID := spec.name + ".json"
	if err := c.AddResource(resourceID, schemaDoc); err != nil {
		return fmt.Errorf("tools: add schema resource for %q: %w", spec.name, err)
	}
	compiled, err := c.Compile(resourceID)
	if err != nil {
		return fmt.Errorf("tools: compile schema for %q: %w", spec.name, err)
	}
	r.tools[spec.name] = spec
	r.compiled[spec.name] = compiled
	return nil
}

// Specs returns the catalog entries of the tools this Registry serves. The
// workflow builds the tool list it hands to the model from Catalog instead.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.tools))
	for name, spec := range r.tools {
		out = append(out, Spec{Name: name, Description: spec.description, ParamSchemaJSON: spec.schema})
	}
	return out
}

// Spec is the tool-catalog entry returned by Specs; kept distinct from
// agent.ToolSpec so this package has no dependency on the agent package.
type Spec struct {
	Name            string
	Description     string
	ParamSchemaJSON string
}

// Catalog returns the builtin tool-spec catalog without constructing a
// Dispatcher. The workflow uses this to build the tool list it hands to
// model_call; it is pure data, safe to call from within the replay sandbox.
func Catalog() []Spec {
	return []Spec{
		{Name: "shell", Description: "Run a shell command and return its combined stdout/stderr and exit code.",
			ParamSchemaJSON: `{"type":"object","properties":{"command":{"type":"array","items":{"type":"string"},"minItems":1}},"required":["command"]}`},
		{Name: "read_file", Description: "Read a file's contents, resolved relative to the tool call's working directory.",
			ParamSchemaJSON: `{"type":"object","properties":{"path":{"type":"string","minLength":1}},"required":["path"]}`},
		{Name: "http_fetch", Description: "Fetch a URL over HTTP GET and return up to 1MB of the response body.",
			ParamSchemaJSON: `{"type":"object","properties":{"url":{"type":"string","minLength":1}},"required":["url"]}`},
	}
}

// Dispatch implements Dispatcher.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (Result, error) {
	spec, ok := r.tools[inv.ToolName]
	if !ok {
		return Result{}, fmt.Errorf("tools: unknown tool %q", inv.ToolName)
	}

	var argsDoc any
	if err := json.Unmarshal([]byte(inv.Arguments), &argsDoc); err != nil {
		return Result{}, fmt.Errorf("tools: unmarshal arguments for %q: %w", inv.ToolName, err)
	}
	if err := r.compiled[inv.ToolName].Validate(argsDoc); err != nil {
		return Result{}, fmt.Errorf("tools: arguments for %q failed schema validation: %w", inv.ToolName, err)
	}

	args, ok := argsDoc.(map[string]any)
	if !ok {
		return Result{}, fmt.Errorf("tools: arguments for %q must be a JSON object", inv.ToolName)
	}

	return spec.handler(ctx, args, inv.Cwd)
}

func (r *Registry) execShell(ctx context.Context, args map[string]any, cwd string) (Result, error) {
	raw, ok := args["command"].([]any)
	if !ok || len(raw) == 0 {
		return Result{}, fmt.Errorf("tools: shell requires a non-empty command array")
	}
	command := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return Result{}, fmt.Errorf("tools: shell command[%d] must be a string", i)
		}
		command[i] = s
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n--- stderr ---\n" + stderr.String()
	}

	exitCode := 0
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if asExitError(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, fmt.Errorf("tools: shell exec failed: %w", err)
		}
	}
	return Result{Output: output, ExitCode: exitCode}, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func (r *Registry) readFile(ctx context.Context, args map[string]any, cwd string) (Result, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return Result{}, fmt.Errorf("tools: read_file requires a path")
	}
	if !filepath.IsAbs(path) && cwd != "" {
		path = filepath.Join(cwd, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Output: err.Error(), ExitCode: 1}, nil
	}
	return Result{Output: string(data), ExitCode: 0}, nil
}

func (r *Registry) httpFetch(ctx context.Context, args map[string]any, cwd string) (Result, error) {
	url, _ := args["url"].(string)
	if url == "" {
		return Result{}, fmt.Errorf("tools: http_fetch requires a url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("tools: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Result{Output: err.Error(), ExitCode: 1}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Output: err.Error(), ExitCode: 1}, nil
	}
	exitCode := 0
	if resp.StatusCode >= 400 {
		exitCode = 1
	}
	return Result{Output: string(body), ExitCode: exitCode}, nil
}
