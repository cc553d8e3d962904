//go:build linux

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codoleet/internal/sandbox/spec"
)

const cpuPeriodUS = 100000

func createRunCgroup(root, submissionID, testID string) (string, func(), error) {
	if root == "" {
		return "", func() {}, fmt.Errorf("cgroup root is required")
	}
	runDir := fmt.Sprintf("%s-%d", testID, time.Now().UnixNano())
	cgroupPath := filepath.Join(root, submissionID, runDir)
	if err := os.MkdirAll(cgroupPath, 0750); err != nil {
		return "", func() {}, fmt.Errorf("create cgroup path: %w", err)
	}
	cleanup := func() {
		_ = os.RemoveAll(cgroupPath)
	}
	return cgroupPath, cleanup, nil
}

func applyCgroupLimits(cgroupPath string, limits spec.ResourceLimit) error {
	pidsValue := "max"
	if limits.PIDs > 0 {
		pidsValue = strconv.FormatInt(limits.PIDs, 10)
	}
	if err := writeCgroupValue(cgroupPath, "pids.max", pidsValue); err != nil {
		return err
	}
	if limits.MemoryMB > 0 {
		if err := writeCgroupValue(cgroupPath, "memory.max", strconv.FormatInt(limits.MemoryMB*1024*1024, 10)); err != nil {
			return err
		}
	}
	if err := writeCgroupValue(cgroupPath, "cpu.max", cpuMaxValue(limits.CPUShares)); err != nil {
		return err
	}
	return nil
}

// cpuMaxValue converts docker-style CPU shares into a cgroup v2 quota,
// 1024 shares meaning one full CPU.
func cpuMaxValue(shares int64) string {
	if shares <= 0 {
		return fmt.Sprintf("max %d", cpuPeriodUS)
	}
	quota := shares * cpuPeriodUS / 1024
	return fmt.Sprintf("%d %d", quota, cpuPeriodUS)
}

func addProcessToCgroup(cgroupPath string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid")
	}
	return writeCgroupValue(cgroupPath, "cgroup.procs", strconv.Itoa(pid))
}

func wasOomKilled(cgroupPath string) bool {
	if cgroupPath == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(cgroupPath, "memory.events"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if fields[0] == "oom_kill" {
			val, _ := strconv.ParseInt(fields[1], 10, 64)
			return val > 0
		}
	}
	return false
}

func writeCgroupValue(cgroupPath, name, value string) error {
	path := filepath.Join(cgroupPath, name)
	return os.WriteFile(path, []byte(value), 0640)
}
