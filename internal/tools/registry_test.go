package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	r, err := NewRegistry()
	require.NoError(t, err)

	res, err := r.Dispatch(context.Background(), Invocation{
		ToolName:  "read_file",
		CallID:    "call-1",
		Arguments: `{"path":"hello.txt"}`,
		Cwd:       dir,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello world", res.Output)
}

func TestRegistryShellEcho(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	res, err := r.Dispatch(context.Background(), Invocation{
		ToolName:  "shell",
		CallID:    "call-1",
		Arguments: `{"command":["echo","hello world"]}`,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "hello world")
}

func TestRegistryRejectsInvalidArguments(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, err = r.Dispatch(context.Background(), Invocation{
		ToolName:  "shell",
		CallID:    "call-1",
		Arguments: `{}`,
	})
	assert.Error(t, err)
}

func TestRegistryUnknownTool(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, err = r.Dispatch(context.Background(), Invocation{ToolName: "does_not_exist"})
	assert.Error(t, err)
}
