//go:build linux

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"codoleet/internal/sandbox/result"
	"codoleet/internal/sandbox/spec"
	"codoleet/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStdoutStderrMaxBytes int64 = 64 * 1024

	stdinFileName  = "stdin.txt"
	stdoutFileName = "stdout.txt"
	stderrFileName = "stderr.txt"
)

type linuxEngine struct {
	cfg Config
}

// NewEngine creates a Linux sandbox engine.
func NewEngine(cfg Config) (Engine, error) {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.HelperPath == "" {
		cfg.HelperPath = "sandbox-init"
	}
	if cfg.EnableCgroup && cfg.CgroupRoot == "" {
		return nil, fmt.Errorf("cgroup root is required when cgroups are enabled")
	}
	return &linuxEngine{cfg: cfg}, nil
}

func (e *linuxEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}

	stdinPath := filepath.Join(runSpec.WorkDir, stdinFileName)
	stdoutPath := filepath.Join(runSpec.WorkDir, stdoutFileName)
	stderrPath := filepath.Join(runSpec.WorkDir, stderrFileName)
	if err := os.WriteFile(stdinPath, []byte(runSpec.Stdin), 0600); err != nil {
		return result.RunResult{}, fmt.Errorf("write stdin file: %w", err)
	}

	cgroupPath := ""
	cgroupCleanup := func() {}
	if e.cfg.EnableCgroup {
		var err error
		cgroupPath, cgroupCleanup, err = createRunCgroup(e.cfg.CgroupRoot, runSpec.SubmissionID, runSpec.TestID)
		if err != nil {
			return result.RunResult{}, fmt.Errorf("create cgroup: %w", err)
		}
		if err := applyCgroupLimits(cgroupPath, runSpec.Limits); err != nil {
			cgroupCleanup()
			return result.RunResult{}, fmt.Errorf("apply cgroup limits: %w", err)
		}
	}
	defer cgroupCleanup()

	initReq := initRequest{
		RunSpec:    runSpec,
		StdinPath:  stdinPath,
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
		EnableNs:   e.cfg.EnableNamespaces,
	}
	stdinPipe, err := jsonToPipe(initReq)
	if err != nil {
		return result.RunResult{}, fmt.Errorf("encode init request: %w", err)
	}
	defer stdinPipe.Close()

	cmd := exec.CommandContext(ctx, e.cfg.HelperPath)
	cmd.SysProcAttr = buildSysProcAttr(e.cfg.EnableNamespaces)
	cmd.Stdin = stdinPipe

	var helperStderr bytes.Buffer
	cmd.Stderr = &helperStderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RunResult{}, fmt.Errorf("start helper: %w", err)
	}

	if e.cfg.EnableCgroup {
		if err := addProcessToCgroup(cgroupPath, cmd.Process.Pid); err != nil {
			logger.Warn(ctx, "add process to cgroup failed", zap.String("cgroup", cgroupPath), zap.Error(err))
		}
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		wallLimit := time.Duration(runSpec.Limits.WallTimeMS) * time.Millisecond
		var wallTimer <-chan time.Time
		if wallLimit > 0 {
			wallTimer = time.After(wallLimit)
		}
		select {
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	if waitErr != nil && helperStderr.Len() > 0 {
		logger.Warn(ctx, "sandbox helper failed",
			zap.String("submission_id", runSpec.SubmissionID),
			zap.String("test_id", runSpec.TestID),
			zap.String("stderr", helperStderr.String()))
	}

	runResult := result.RunResult{
		Stdout:     readLimitedFile(stdoutPath, e.cfg.StdoutStderrMaxBytes),
		Stderr:     readLimitedFile(stderrPath, e.cfg.StdoutStderrMaxBytes),
		ExitCode:   exitCodeFromErr(waitErr, cmd.ProcessState),
		WallTimeMS: time.Since(start).Milliseconds(),
		OOMKilled:  wasOomKilled(cgroupPath),
	}
	if runResult.Stderr == "" && helperStderr.Len() > 0 {
		runResult.Stderr = truncateBytes(helperStderr.Bytes(), e.cfg.StdoutStderrMaxBytes)
	}

	if timedOut.Load() {
		runResult.TimedOut = true
		if runResult.ExitCode == 0 {
			runResult.ExitCode = -1
		}
	}
	if waitErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		runResult.TimedOut = true
		runResult.ExitCode = -1
	}

	return runResult, nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.SubmissionID == "" {
		return fmt.Errorf("submission id is required")
	}
	if runSpec.TestID == "" {
		return fmt.Errorf("test id is required")
	}
	if runSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if runSpec.Command == "" {
		return fmt.Errorf("command is required")
	}
	return nil
}

func jsonToPipe(req initRequest) (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		enc := json.NewEncoder(writer)
		err := enc.Encode(req)
		_ = writer.CloseWithError(err)
	}()
	return reader, nil
}

func buildSysProcAttr(enableNamespaces bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if !enableNamespaces {
		return attr
	}

	// Submitted code never gets network access.
	attr.Cloneflags = uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS |
		syscall.CLONE_NEWIPC | syscall.CLONE_NEWNET | syscall.CLONE_NEWUSER)
	attr.GidMappingsEnableSetgroups = false
	attr.UidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getuid(),
		Size:        1,
	}}
	attr.GidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getgid(),
		Size:        1,
	}}
	return attr
}

func readLimitedFile(path string, maxBytes int64) string {
	if path == "" {
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxBytes))
	if err != nil {
		return ""
	}
	return string(data)
}

func truncateBytes(data []byte, maxBytes int64) string {
	if int64(len(data)) > maxBytes {
		data = data[:maxBytes]
	}
	return string(data)
}
