package launch

import (
	"github.com/shirou/gopsutil/v3/process"
)

// Electron and Chromium fork helper processes that survive their parent
// unless they are found before the parent goes away.
func collectDescendants(pid int) []*process.Process {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []*process.Process
	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.Children()
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out
}
