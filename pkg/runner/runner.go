package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"autoqa/pkg/logx"
)

// DefaultTimeout bounds one test execution.
const DefaultTimeout = 120 * time.Second

// command is one entry in the fixed framework -> invocation table.
type command struct {
	bin  string
	args []string
}

// commandTable maps each supported framework to its native test command.
// The set is closed: unsupported frameworks are rejected up front rather
// than guessed at.
//
//nolint:gochecknoglobals // Static mapping table
var commandTable = map[Framework]command{
	FrameworkGoTest: {bin: "go", args: []string{"test", "-v", "-cover", "./..."}},
	FrameworkCargo:  {bin: "cargo", args: []string{"test", "--", "--nocapture"}},
	FrameworkJest:   {bin: "npx", args: []string{"jest", "--verbose", "--no-coverage"}},
	FrameworkPytest: {bin: "pytest", args: []string{"-v", "--tb=short"}},
	FrameworkMocha:  {bin: "npx", args: []string{"mocha", "--reporter", "spec"}},
	FrameworkVitest: {bin: "npx", args: []string{"vitest", "run"}},
}

// DetectFramework selects the framework for a language by inspecting
// project marker files, defaulting sensibly where the language allows it.
func DetectFramework(projectDir, language string) (Framework, error) {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(projectDir, name))
		return err == nil
	}

	switch strings.ToLower(language) {
	case "go":
		if !exists("go.mod") {
			return "", fmt.Errorf("go project without go.mod in %s", projectDir)
		}
		return FrameworkGoTest, nil
	case "rust":
		if !exists("Cargo.toml") {
			return "", fmt.Errorf("rust project without Cargo.toml in %s", projectDir)
		}
		return FrameworkCargo, nil
	case "python":
		return FrameworkPytest, nil
	case "typescript", "javascript":
		pkgJSON := filepath.Join(projectDir, "package.json")
		content, err := os.ReadFile(pkgJSON)
		if err != nil {
			return "", fmt.Errorf("no package.json in %s: %w", projectDir, err)
		}
		switch {
		case strings.Contains(string(content), `"vitest"`):
			return FrameworkVitest, nil
		case strings.Contains(string(content), `"mocha"`):
			return FrameworkMocha, nil
		default:
			return FrameworkJest, nil
		}
	default:
		return "", fmt.Errorf("unsupported language: %s", language)
	}
}

// Runner executes test suites with a hard per-run timeout.
type Runner struct {
	timeout time.Duration
	logger  *logx.Logger
}

// NewRunner creates a runner with the default timeout.
func NewRunner() *Runner {
	return NewRunnerWithTimeout(DefaultTimeout)
}

// NewRunnerWithTimeout creates a runner with a specific timeout.
func NewRunnerWithTimeout(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		timeout: timeout,
		logger:  logx.NewLogger("runner"),
	}
}

// Run executes the framework's test command in projectDir and parses the
// output. A run that times out is force-terminated and returned as Results
// carrying one synthetic failure, not as a crash. A missing toolchain is
// returned as *EnvironmentError.
func (r *Runner) Run(ctx context.Context, projectDir string, framework Framework) (Results, error) {
	spec, ok := commandTable[framework]
	if !ok {
		return Results{}, fmt.Errorf("unsupported test framework: %s", framework)
	}

	if _, err := exec.LookPath(spec.bin); err != nil {
		return Results{}, &EnvironmentError{Tool: spec.bin, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.bin, spec.args...)
	cmd.Dir = projectDir
	// Bound Wait after the kill signal so a child holding the output pipes
	// cannot hang the run past its deadline.
	cmd.WaitDelay = 5 * time.Second

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	r.logger.Debug("executing %s %s in %s", spec.bin, strings.Join(spec.args, " "), projectDir)

	startTime := time.Now()
	err := cmd.Run()
	duration := time.Since(startTime)

	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	if runCtx.Err() == context.DeadlineExceeded {
		timeoutErr := &TimeoutError{
			Command: spec.bin + " " + strings.Join(spec.args, " "),
			Timeout: r.timeout,
		}
		r.logger.Warn("%v", timeoutErr)
		return timeoutResults(framework, stdout, stderr, duration, timeoutErr), nil
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Nonzero exit is the normal failure path into the parser.
			exitCode = exitErr.ExitCode()
		} else {
			return Results{}, &EnvironmentError{Tool: spec.bin, Err: err}
		}
	}

	results := parseOutput(framework, stdout, stderr, exitCode)
	results.Duration = duration

	r.logger.Info("test run complete: %d/%d passed (exit %d, %s)",
		results.Passed, results.Total, results.ExitCode, duration.Round(time.Millisecond))
	return results, nil
}

// timeoutResults builds the synthetic single-failure result for a killed run.
func timeoutResults(framework Framework, stdout, stderr string, duration time.Duration, timeoutErr *TimeoutError) Results {
	return Results{
		Framework: framework,
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  -1,
		Duration:  duration,
		TimedOut:  true,
		Total:     1,
		Failed:    1,
		Failures: []Failure{{
			Test:    "<test execution>",
			Message: timeoutErr.Error(),
			Stack:   tail(stdout, genericTailBytes),
		}},
	}
}
