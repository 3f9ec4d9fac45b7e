//go:build !unix

package process

import (
	"errors"
	"os"
	"os/exec"
)

func configureProcAttr(*exec.Cmd) {}

func killProcess(p *os.Process) error {
	return p.Kill()
}

func isProcessGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
