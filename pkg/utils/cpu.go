package utils

import (
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// CheckCPUUsage reports whether host CPU usage is at or below maxCPUUsage.
// A non-positive limit disables the check.
func CheckCPUUsage(maxCPUUsage float64) (bool, float64) {
	if maxCPUUsage <= 0 {
		return true, 0
	}
	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		return true, 0
	}
	return usage[0] <= maxCPUUsage, usage[0]
}

type MemoryUsage struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
}

func GetMemoryUsage() (*MemoryUsage, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}
	return &MemoryUsage{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}, nil
}
