package core

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const gitTimeout = 60 * time.Second

// GitRunner runs git commands. The fetch layer depends on this interface so
// tests can record or stub invocations without a network or a git binary.
type GitRunner interface {
	// Run executes git with the given arguments, returning combined output.
	// dir is the working directory; "" means the process default.
	Run(dir string, args ...string) (string, error)
}

// execGitRunner shells out to the git binary with prompts disabled and a
// bounded per-invocation timeout.
type execGitRunner struct {
	timeout time.Duration
}

// NewGitRunner returns the production GitRunner.
func NewGitRunner() GitRunner {
	return &execGitRunner{timeout: gitTimeout}
}

func (g *execGitRunner) Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	output, err := runWithTimeout(cmd, g.timeout)
	if err != nil {
		return output, fmt.Errorf("git %s: %s", strings.Join(args, " "), classifyGitFailure(output, err))
	}
	return output, nil
}

// runWithTimeout runs a command with a timeout.
// exec.CommandContext would be cleaner, but we want the combined output.
func runWithTimeout(cmd *exec.Cmd, timeout time.Duration) (string, error) {
	done := make(chan struct{})
	var output []byte
	var cmdErr error

	go func() {
		output, cmdErr = cmd.CombinedOutput()
		close(done)
	}()

	select {
	case <-done:
		return string(output), cmdErr
	case <-time.After(timeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
}

// classifyGitFailure condenses raw git output into a single diagnostic line.
// Recognized failure shapes get a hint; everything else passes through.
func classifyGitFailure(output string, err error) string {
	msg := strings.TrimSpace(output)
	if msg == "" {
		msg = err.Error()
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "permission denied (publickey)"):
		return fmt.Sprintf("authentication required (%s)", firstLine(msg))
	case strings.Contains(lower, "repository not found"),
		strings.Contains(lower, "not found"):
		return fmt.Sprintf("repository not found (%s)", firstLine(msg))
	case strings.Contains(lower, "could not resolve host"):
		return fmt.Sprintf("network error (%s)", firstLine(msg))
	case strings.Contains(lower, "timed out"):
		return msg
	default:
		return firstLine(msg)
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
