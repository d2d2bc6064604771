/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package sysinfo

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

func fakeCollector() *Collector {
	c := New("nightly")
	c.diskPath = "/data"
	c.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			Hostname:        "builder-1",
			Platform:        "wolfi",
			PlatformVersion: "20230201",
			KernelVersion:   "6.1.0",
			KernelArch:      "x86_64",
		}, nil
	}
	c.cpuInfo = func(context.Context) ([]cpu.InfoStat, error) {
		return []cpu.InfoStat{{ModelName: "Test CPU"}}, nil
	}
	c.cpuCounts = func(context.Context, bool) (int, error) { return 8, nil }
	c.cpuUsage = func(context.Context, time.Duration, bool) ([]float64, error) { return []float64{12.5}, nil }
	c.memory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 16 << 30, Available: 8 << 30, UsedPercent: 50}, nil
	}
	c.diskUsage = func(_ context.Context, path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Total: 100, Free: 40, UsedPercent: 60}, nil
	}
	c.netIO = func(context.Context, bool) ([]net.IOCountersStat, error) {
		return []net.IOCountersStat{{Name: "all", BytesSent: 10, BytesRecv: 20}}, nil
	}
	c.buildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Path: "chainguard.dev/catalyst"},
			Deps: []*debug.Module{
				{Path: "github.com/z/last", Version: "v1.0.0"},
				{Path: "github.com/a/first", Version: "v0.1.0"},
			},
		}, true
	}
	return c
}

func TestSystemInfo(t *testing.T) {
	got := fakeCollector().SystemInfo(context.Background())
	want := SystemInfo{
		ID: "sys_nightly",
		OS: OSInfo{
			Name:          runtime.GOOS,
			Platform:      "wolfi",
			Version:       "20230201",
			KernelVersion: "6.1.0",
			Arch:          "x86_64",
			Hostname:      "builder-1",
		},
		Environment: Environment{
			Name:     "go",
			Version:  runtime.Version(),
			Module:   "chainguard.dev/catalyst",
			Packages: []string{"github.com/a/first@v0.1.0", "github.com/z/last@v1.0.0"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SystemInfo() mismatch (-want +got):\n%s", diff)
	}
}

func TestResources(t *testing.T) {
	got := fakeCollector().Resources(context.Background())
	want := Resources{
		CPU:     CPU{Model: "Test CPU", Cores: 8, UsagePercent: 12.5},
		Memory:  Memory{TotalBytes: 16 << 30, AvailableBytes: 8 << 30, UsedPercent: 50},
		Disk:    Disk{Path: "/data", TotalBytes: 100, FreeBytes: 40, UsedPercent: 60},
		Network: Network{BytesSent: 10, BytesRecv: 20},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resources() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectorFailuresAreBestEffort(t *testing.T) {
	c := fakeCollector()
	boom := errors.New("not supported")
	c.hostInfo = func(context.Context) (*host.InfoStat, error) { return nil, boom }
	c.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, boom }
	c.buildInfo = func() (*debug.BuildInfo, bool) { return nil, false }

	info := c.SystemInfo(context.Background())
	if info.OS.Name != runtime.GOOS || info.OS.Hostname != "" {
		t.Errorf("OS = %+v, wanted only the runtime fields", info.OS)
	}
	if info.Environment.Packages == nil {
		t.Error("Packages = nil, wanted an empty list")
	}

	r := c.Resources(context.Background())
	if r.Memory != (Memory{}) {
		t.Errorf("Memory = %+v, wanted zero", r.Memory)
	}
	if r.CPU.Cores != 8 {
		t.Errorf("Cores = %d, wanted = 8", r.CPU.Cores)
	}
}

func TestCollectorOnHost(t *testing.T) {
	c := New("host")
	info := c.SystemInfo(context.Background())
	if info.Environment.Version != runtime.Version() {
		t.Errorf("Version = %q, wanted = %q", info.Environment.Version, runtime.Version())
	}
	// Host queries are best effort; this only checks nothing panics.
	_ = c.Resources(context.Background())
}
