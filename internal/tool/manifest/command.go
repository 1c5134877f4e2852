package manifest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/toolmesh/toolmesh/internal/tool"
)

// CommandTool runs a declared command as a subprocess, mapping validated
// arguments into the command line ($name placeholders) and the environment
// (TOOL_ARG_<NAME> variables).
type CommandTool struct {
	init    tool.InitGuard
	meta    tool.Metadata
	dir     string
	command string
	args    []string
	env     []string
	timeout time.Duration
}

func (c *CommandTool) Metadata() tool.Metadata { return c.meta }

// Initialize verifies the command resolves to an executable.
func (c *CommandTool) Initialize(_ context.Context) error {
	return c.init.Do(func() error {
		if _, err := exec.LookPath(c.command); err != nil {
			return fmt.Errorf("command %q not found", c.command)
		}
		return nil
	})
}

func (c *CommandTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmdArgs := make([]string, len(c.args))
	for i, a := range c.args {
		if strings.HasPrefix(a, "$") {
			if v, ok := args[a[1:]]; ok {
				cmdArgs[i] = fmt.Sprint(v)
			}
			continue
		}
		cmdArgs[i] = a
	}

	cmd := exec.CommandContext(ctx, c.command, cmdArgs...)
	cmd.Dir = c.dir

	cmd.Env = os.Environ()
	for _, envDef := range c.env {
		cmd.Env = append(cmd.Env, os.ExpandEnv(envDef))
	}
	for k, v := range args {
		cmd.Env = append(cmd.Env, fmt.Sprintf("TOOL_ARG_%s=%v", strings.ToUpper(k), v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("run command: %w", err)
		}
	}

	if exitCode != 0 {
		res := tool.Fail("command exited with code %d: %s", exitCode, strings.TrimSpace(stderr.String()))
		res.Metadata = map[string]any{"exit_code": exitCode}
		return res, nil
	}

	res := tool.Ok(map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	})
	return res, nil
}
