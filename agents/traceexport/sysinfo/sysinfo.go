/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package sysinfo describes the machine a trace was recorded on.
package sysinfo

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// SystemInfo is the static description of the host and program.
type SystemInfo struct {
	ID          string      `json:"id"`
	OS          OSInfo      `json:"os"`
	Environment Environment `json:"environment"`
	// SourceCode is the hash of the packaged source archive.
	SourceCode string `json:"source_code"`
}

// OSInfo describes the operating system.
type OSInfo struct {
	Name          string `json:"name"`
	Platform      string `json:"platform"`
	Version       string `json:"version"`
	KernelVersion string `json:"kernel_version"`
	Arch          string `json:"arch"`
	Hostname      string `json:"hostname"`
}

// Environment describes the program that recorded the trace.
type Environment struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Module   string   `json:"module"`
	Packages []string `json:"packages"`
}

// Resources is a point in time sample of host resources.
type Resources struct {
	CPU     CPU     `json:"cpu"`
	Memory  Memory  `json:"memory"`
	Disk    Disk    `json:"disk"`
	Network Network `json:"network"`
}

// CPU describes the host processor and its utilization at snapshot time.
type CPU struct {
	Model        string  `json:"model"`
	Cores        int     `json:"cores"`
	UsagePercent float64 `json:"usage_percent"`
}

// Memory reports virtual memory totals for the host.
type Memory struct {
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// Disk reports usage of the filesystem that holds Path.
type Disk struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Network holds byte counters summed across all interfaces.
type Network struct {
	BytesSent uint64 `json:"bytes_sent"`
	BytesRecv uint64 `json:"bytes_recv"`
}

// Collector gathers SystemInfo and Resources. Queries that fail are logged and
// leave their section zero valued; collection itself never fails.
type Collector struct {
	id       string
	diskPath string

	hostInfo  func(context.Context) (*host.InfoStat, error)
	cpuInfo   func(context.Context) ([]cpu.InfoStat, error)
	cpuCounts func(context.Context, bool) (int, error)
	cpuUsage  func(context.Context, time.Duration, bool) ([]float64, error)
	memory    func(context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage func(context.Context, string) (*disk.UsageStat, error)
	netIO     func(context.Context, bool) ([]net.IOCountersStat, error)
	buildInfo func() (*debug.BuildInfo, bool)
}

// New creates a collector for the given dataset. The id of the system info
// is derived from it.
func New(dataset string) *Collector {
	diskPath := "/"
	if runtime.GOOS == "windows" {
		diskPath = `C:\`
	}
	return &Collector{
		id:        "sys_" + dataset,
		diskPath:  diskPath,
		hostInfo:  host.InfoWithContext,
		cpuInfo:   cpu.InfoWithContext,
		cpuCounts: cpu.CountsWithContext,
		cpuUsage:  cpu.PercentWithContext,
		memory:    mem.VirtualMemoryWithContext,
		diskUsage: disk.UsageWithContext,
		netIO:     net.IOCountersWithContext,
		buildInfo: debug.ReadBuildInfo,
	}
}

// SystemInfo describes the host and the running program.
func (c *Collector) SystemInfo(ctx context.Context) SystemInfo {
	log := clog.FromContext(ctx)
	info := SystemInfo{
		ID: c.id,
		OS: OSInfo{
			Name: runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		Environment: Environment{
			Name:     "go",
			Version:  runtime.Version(),
			Packages: []string{},
		},
	}

	if h, err := c.hostInfo(ctx); err != nil {
		log.Warn("Failed to read host info", "error", err)
	} else {
		info.OS.Platform = h.Platform
		info.OS.Version = h.PlatformVersion
		info.OS.KernelVersion = h.KernelVersion
		info.OS.Hostname = h.Hostname
		if h.KernelArch != "" {
			info.OS.Arch = h.KernelArch
		}
	}

	if bi, ok := c.buildInfo(); ok {
		info.Environment.Module = bi.Main.Path
		for _, dep := range bi.Deps {
			info.Environment.Packages = append(info.Environment.Packages, dep.Path+"@"+dep.Version)
		}
		sort.Strings(info.Environment.Packages)
	}
	return info
}

// Resources samples CPU, memory, disk and network usage.
func (c *Collector) Resources(ctx context.Context) Resources {
	log := clog.FromContext(ctx)
	var r Resources

	if infos, err := c.cpuInfo(ctx); err != nil {
		log.Warn("Failed to read cpu info", "error", err)
	} else if len(infos) > 0 {
		r.CPU.Model = infos[0].ModelName
	}
	if n, err := c.cpuCounts(ctx, true); err != nil {
		log.Warn("Failed to count cpus", "error", err)
	} else {
		r.CPU.Cores = n
	}
	if usage, err := c.cpuUsage(ctx, 0, false); err != nil {
		log.Warn("Failed to sample cpu usage", "error", err)
	} else if len(usage) > 0 {
		r.CPU.UsagePercent = usage[0]
	}

	if vm, err := c.memory(ctx); err != nil {
		log.Warn("Failed to read memory", "error", err)
	} else {
		r.Memory = Memory{
			TotalBytes:     vm.Total,
			AvailableBytes: vm.Available,
			UsedPercent:    vm.UsedPercent,
		}
	}

	r.Disk.Path = c.diskPath
	if du, err := c.diskUsage(ctx, c.diskPath); err != nil {
		log.Warn("Failed to read disk usage", "error", err, "path", c.diskPath)
	} else {
		r.Disk.TotalBytes = du.Total
		r.Disk.FreeBytes = du.Free
		r.Disk.UsedPercent = du.UsedPercent
	}

	if counters, err := c.netIO(ctx, false); err != nil {
		log.Warn("Failed to read network counters", "error", err)
	} else if len(counters) > 0 {
		r.Network.BytesSent = counters[0].BytesSent
		r.Network.BytesRecv = counters[0].BytesRecv
	}
	return r
}
