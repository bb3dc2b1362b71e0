package proxy

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/nodeforge/cove/pkg/log"
)

// NATBackend is the narrow interface the service proxy drives its NAT
// rules through. It has two implementations: iptables, which shells out
// to the real `iptables` binary (os/exec), and simulation, which logs
// the command it would have run — the same "subprocess invocation
// behind a narrow interface" idiom the teacher used for its hostports
// publisher (pkg/network/hostports.go's runIPTables).
type NATBackend interface {
	// Run executes an iptables command, returning an error on failure.
	Run(args ...string) error
	// RunIdempotent runs a command whose failure (e.g. "chain already
	// exists", "no such rule") is expected and not worth surfacing; it
	// reports whether the command succeeded.
	RunIdempotent(args ...string) bool
}

// IPTablesBackend runs real iptables commands via os/exec.
type IPTablesBackend struct{}

func (IPTablesBackend) Run(args ...string) error {
	cmd := exec.Command("iptables", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("iptables %s: %w (output: %s)", strings.Join(args, " "), err, string(out))
	}
	return nil
}

func (b IPTablesBackend) RunIdempotent(args ...string) bool {
	return b.Run(args...) == nil
}

// SimulationBackend never shells out; it logs the intended command. Used
// in development and on platforms without iptables (spec.md §9
// "simulation mode" design note, same shape as the volume resolver's
// NFS fallback).
type SimulationBackend struct{}

func (SimulationBackend) Run(args ...string) error {
	log.WithComponent("serviceproxy-sim").Debug().Str("cmd", "iptables "+strings.Join(args, " ")).Msg("simulated iptables call")
	return nil
}

func (b SimulationBackend) RunIdempotent(args ...string) bool {
	_ = b.Run(args...)
	// No rule is ever really installed, so a rule deletion never finds one.
	for _, a := range args {
		if a == "-D" {
			return false
		}
	}
	return true
}
