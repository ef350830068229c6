package asbplayer

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// ServerProcess supervises an externally configured asbplayer
// websocket-server command for the lifetime of the daemon.
type ServerProcess struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

// StartServer launches the given command line in the background. The
// command is split on whitespace; quoting is not supported.
func StartServer(cmdLine string) (*ServerProcess, error) {
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil, errors.New("empty websocket server command")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	sp := &ServerProcess{cmd: cmd}
	cmd.Stderr = &sp.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	log.Info("asbplayer websocket server started: %s", cmdLine)

	go sp.monitor()
	return sp, nil
}

func (s *ServerProcess) monitor() {
	if err := s.cmd.Wait(); err != nil {
		log.Warn("asbplayer websocket server exited: %v: %s",
			err, strings.TrimSpace(s.stderr.String()))
		return
	}
	log.Info("asbplayer websocket server finished")
}

// Stop terminates the server process. Safe to call after the process
// has already exited.
func (s *ServerProcess) Stop() {
	if s == nil || s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Kill(); err != nil {
		log.Debug("websocket server kill: %v", err)
	}
}
