package monitoring

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage is a point-in-time snapshot of process and host resources.
type ResourceUsage struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryUsedMB  float64 `json:"memoryUsedMb"`
	MemoryTotalMB float64 `json:"memoryTotalMb"`
	MemoryPercent float64 `json:"memoryPercent"`
	NumGoroutines int     `json:"numGoroutines"`

	DiskPath        string  `json:"diskPath"`
	DiskUsedGB      float64 `json:"diskUsedGb"`
	DiskFreeGB      float64 `json:"diskFreeGb"`
	DiskUsedPercent float64 `json:"diskUsedPercent"`
}

// Monitor periodically logs resource usage and answers health queries.
// diskPath is the recordings volume, the disk that actually fills up.
type Monitor struct {
	proc     *process.Process
	diskPath string
	schedule *cron.Cron
}

// NewMonitor creates a monitor for the current process.
func NewMonitor(diskPath string) (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("error getting process: %v", err)
	}
	return &Monitor{proc: proc, diskPath: diskPath}, nil
}

// Start schedules periodic resource logging. Interval <= 0 disables it.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.schedule = cron.New()
	m.schedule.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		usage, err := m.Usage()
		if err != nil {
			log.Printf("Monitor: error getting resource usage: %v", err)
			return
		}
		log.Printf("Monitor: CPU: %.2f%%, Memory: %.2f/%.2f MB (%.2f%%), Disk: %.1f GB free (%.1f%% used), Goroutines: %d",
			usage.CPUPercent,
			usage.MemoryUsedMB,
			usage.MemoryTotalMB,
			usage.MemoryPercent,
			usage.DiskFreeGB,
			usage.DiskUsedPercent,
			usage.NumGoroutines)
	})
	m.schedule.Start()
	log.Printf("Monitor: resource logging every %s", interval)
}

// Stop halts the periodic logging.
func (m *Monitor) Stop() {
	if m.schedule != nil {
		m.schedule.Stop()
	}
}

// Usage collects a resource snapshot.
func (m *Monitor) Usage() (ResourceUsage, error) {
	var usage ResourceUsage

	cpuPercent, err := m.proc.CPUPercent()
	if err != nil {
		return usage, fmt.Errorf("error getting CPU usage: %v", err)
	}
	usage.CPUPercent = cpuPercent

	virtualMem, err := mem.VirtualMemory()
	if err != nil {
		return usage, fmt.Errorf("error getting memory info: %v", err)
	}
	procMem, err := m.proc.MemoryInfo()
	if err != nil {
		return usage, fmt.Errorf("error getting process memory: %v", err)
	}
	usage.MemoryUsedMB = float64(procMem.RSS) / 1024 / 1024
	usage.MemoryTotalMB = float64(virtualMem.Total) / 1024 / 1024
	usage.MemoryPercent = float64(procMem.RSS) / float64(virtualMem.Total) * 100

	usage.NumGoroutines = runtime.NumGoroutine()

	usage.DiskPath = m.diskPath
	if du, err := disk.Usage(m.diskPath); err == nil {
		usage.DiskUsedGB = float64(du.Used) / 1024 / 1024 / 1024
		usage.DiskFreeGB = float64(du.Free) / 1024 / 1024 / 1024
		usage.DiskUsedPercent = du.UsedPercent
	}

	return usage, nil
}
