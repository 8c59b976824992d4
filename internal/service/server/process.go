package server

import (
	"context"
	"os"
	"runtime"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/remote-alarm/internal/logger"
)

// baseServerExecutable is the executable name of this binary without extension.
const baseServerExecutable = "alarm-server"

// warnOtherInstances logs a warning for every other alarm server process,
// since two of them would fight over the audio device and the port.
func warnOtherInstances(ctx context.Context) {
	processList, err := ps.Processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)

		return
	}

	pids := otherInstances(processList, serverExecutable(), os.Getpid())
	if len(pids) > 0 {
		logger.WarnKV(ctx, "Another alarm server appears to be running", "pids", pids)
	}
}

// otherInstances returns the pids of processes named executable, except self.
func otherInstances(processList []ps.Process, executable string, self int) []int {
	var pids []int

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids
}

// serverExecutable returns the platform-specific executable name.
func serverExecutable() string {
	if runtime.GOOS == "windows" {
		return baseServerExecutable + ".exe"
	}

	return baseServerExecutable
}
