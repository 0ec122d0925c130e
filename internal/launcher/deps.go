package launcher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Checker reports whether a Python module can be imported.
type Checker interface {
	Check(ctx context.Context, module string) error
}

var moduleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// PythonChecker runs `<interpreter> -c "import <module>"` in Dir.
type PythonChecker struct {
	Interpreter string
	Dir         string
}

// Check implements Checker.
func (c PythonChecker) Check(ctx context.Context, module string) error {
	if !moduleName.MatchString(module) {
		return fmt.Errorf("invalid module name %q", module)
	}
	interpreter := c.Interpreter
	if interpreter == "" {
		interpreter = defaultInterpreter
	}
	path, err := exec.LookPath(interpreter)
	if err != nil {
		return fmt.Errorf("interpreter %q not found: %w", interpreter, err)
	}

	cmd := exec.CommandContext(ctx, path, "-c", "import "+module)
	cmd.Dir = c.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := lastLine(out.String()); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	return nil
}

// checkDependencies checks modules in order and stops at the first failure.
func checkDependencies(ctx context.Context, checker Checker, modules []string) error {
	for _, module := range modules {
		if err := checker.Check(ctx, module); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &DependencyError{Module: module, Err: err}
		}
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
