package executor

import (
	"os"

	ps "github.com/mitchellh/go-ps"
)

// listProcesses is replaced in tests.
var listProcesses = ps.Processes

// KillTree kills pid and every process descending from it. Interpreters such
// as node or ruby may spawn helpers that would otherwise outlive a timed-out
// render.
func KillTree(pid int) error {
	if procs, err := listProcesses(); err == nil {
		// Children first so they cannot be re-parented before we see them.
		children := Descendants(pid, procs)
		for i := len(children) - 1; i >= 0; i-- {
			if p, err := os.FindProcess(children[i]); err == nil {
				_ = p.Kill()
			}
		}
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// Descendants returns the pids of every process below root in procs, in
// breadth-first order.
func Descendants(root int, procs []ps.Process) []int {
	children := make(map[int][]int, len(procs))
	for _, p := range procs {
		children[p.PPid()] = append(children[p.PPid()], p.Pid())
	}

	var out []int
	seen := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
