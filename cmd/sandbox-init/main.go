//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// sandbox-init is the re-exec helper the sandbox engine spawns inside fresh
// namespaces. It reads one JSON request from stdin, locks the process down
// and execs the target command.
func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	req, err := decodeRequest(os.Stdin)
	if err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	if req.EnableNs {
		if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
			return fmt.Errorf("make mount private: %w", err)
		}
	}

	if err := os.Chdir(req.RunSpec.WorkDir); err != nil {
		return fmt.Errorf("chdir workdir: %w", err)
	}

	if err := applyRlimits(req.RunSpec.Limits); err != nil {
		return err
	}

	if err := redirectIO(req); err != nil {
		return err
	}

	env := buildEnv(req.RunSpec.Env)
	os.Clearenv()
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if err := os.Setenv(parts[0], parts[1]); err != nil {
			return fmt.Errorf("set env: %w", err)
		}
	}

	argv := append([]string{req.RunSpec.Command}, req.RunSpec.Args...)
	cmdPath, err := exec.LookPath(req.RunSpec.Command)
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	return unix.Exec(cmdPath, argv, env)
}

func decodeRequest(r io.Reader) (initRequest, error) {
	dec := json.NewDecoder(r)
	var req initRequest
	if err := dec.Decode(&req); err != nil {
		return initRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func validateRequest(req initRequest) error {
	if req.RunSpec.Command == "" {
		return fmt.Errorf("command is required")
	}
	if req.RunSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	return nil
}

func applyRlimits(limits resourceLimit) error {
	if limits.WallTimeMS > 0 {
		seconds := uint64((limits.WallTimeMS + 999) / 1000)
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: seconds, Max: seconds}); err != nil {
			return fmt.Errorf("set rlimit cpu: %w", err)
		}
	}
	if limits.OutputBytes > 0 {
		val := uint64(limits.OutputBytes)
		if err := unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit fsize: %w", err)
		}
	}
	if limits.PIDs > 0 {
		val := uint64(limits.PIDs)
		if err := unix.Setrlimit(unix.RLIMIT_NPROC, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit nproc: %w", err)
		}
	}
	return nil
}

func redirectIO(req initRequest) error {
	stdinPath := req.StdinPath
	if stdinPath == "" {
		stdinPath = "/dev/null"
	}
	stdoutPath := req.StdoutPath
	if stdoutPath == "" {
		stdoutPath = "/dev/null"
	}
	stderrPath := req.StderrPath
	if stderrPath == "" {
		stderrPath = "/dev/null"
	}
	stdinFile, err := os.Open(stdinPath)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	stdoutFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}
	stderrFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stderr: %w", err)
	}
	if err := unix.Dup2(int(stdinFile.Fd()), int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	if err := unix.Dup2(int(stdoutFile.Fd()), int(os.Stdout.Fd())); err != nil {
		return fmt.Errorf("dup stdout: %w", err)
	}
	if err := unix.Dup2(int(stderrFile.Fd()), int(os.Stderr.Fd())); err != nil {
		return fmt.Errorf("dup stderr: %w", err)
	}
	_ = stdinFile.Close()
	_ = stdoutFile.Close()
	_ = stderrFile.Close()
	return nil
}

func buildEnv(env []string) []string {
	if len(env) > 0 {
		return env
	}
	return []string{"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"}
}

type initRequest struct {
	RunSpec    runSpec `json:"RunSpec"`
	StdinPath  string  `json:"StdinPath"`
	StdoutPath string  `json:"StdoutPath"`
	StderrPath string  `json:"StderrPath"`
	EnableNs   bool    `json:"EnableNs"`
}

type runSpec struct {
	SubmissionID string        `json:"SubmissionID"`
	TestID       string        `json:"TestID"`
	Language     string        `json:"Language"`
	WorkDir      string        `json:"WorkDir"`
	Command      string        `json:"Command"`
	Args         []string      `json:"Args"`
	Env          []string      `json:"Env"`
	Stdin        string        `json:"Stdin"`
	Limits       resourceLimit `json:"Limits"`
}

type resourceLimit struct {
	WallTimeMS  int64 `json:"WallTimeMS"`
	MemoryMB    int64 `json:"MemoryMB"`
	CPUShares   int64 `json:"CPUShares"`
	PIDs        int64 `json:"PIDs"`
	OutputBytes int64 `json:"OutputBytes"`
}
