/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
)

// Sampler reads the local host's identity, CPU and memory figures.
type Sampler struct {
	log    logger.Logger
	status string

	infoCollector  func(context.Context) (*host.InfoStat, error)
	coreCounter    func(context.Context, bool) (int, error)
	usageCollector func(context.Context, time.Duration, bool) ([]float64, error)
	memCollector   func(context.Context) (*mem.VirtualMemoryStat, error)
	hostIdentifier func() string
	now            func() time.Time
}

func NewSampler(log logger.Logger, status string) *Sampler {
	if status == "" {
		status = "Connected"
	}

	return &Sampler{
		log:            log,
		status:         status,
		infoCollector:  host.InfoWithContext,
		coreCounter:    cpu.CountsWithContext,
		usageCollector: cpu.PercentWithContext,
		memCollector:   mem.VirtualMemoryWithContext,
		hostIdentifier: hostIdentifier,
		now:            time.Now,
	}
}

// Sample captures one record. CPU and host-info failures degrade to
// fallbacks; a memory failure fails the sample.
func (s *Sampler) Sample(ctx context.Context) (models.StatusRecord, error) {
	vm, err := s.memCollector(ctx)
	if err != nil {
		return models.StatusRecord{}, fmt.Errorf("memory collection failed: %w", err)
	}

	rec := models.StatusRecord{
		HostIdentity:     s.hostIdentifier(),
		OSDescription:    runtime.GOOS,
		TotalMemoryBytes: clampInt64(vm.Total),
		UsedMemoryBytes:  clampInt64(vm.Used),
		Status:           s.status,
		CapturedAt:       s.now().UTC(),
	}

	if info, err := s.infoCollector(ctx); err != nil {
		s.log.Warn().Err(err).Msg("host info collection failed; using hostname and GOOS")
	} else {
		if info.Hostname != "" {
			rec.HostIdentity = info.Hostname
		}

		rec.OSDescription = describeOS(info)
	}

	if cores, err := s.coreCounter(ctx, true); err != nil {
		s.log.Warn().Err(err).Msg("cpu.CountsWithContext failed; using runtime.NumCPU")
		rec.CPUCoreCount = runtime.NumCPU()
	} else {
		rec.CPUCoreCount = cores
	}

	// interval 0 compares against the previous call
	if percent, err := s.usageCollector(ctx, 0, false); err != nil || len(percent) == 0 {
		s.log.Warn().Err(err).Msg("cpu.PercentWithContext failed; usage will be zero")
	} else {
		rec.CPUUsagePercent = percent[0]
	}

	return rec, nil
}

func describeOS(info *host.InfoStat) string {
	var parts []string

	if info.Platform != "" {
		parts = append(parts, strings.TrimSpace(info.Platform+" "+info.PlatformVersion))
	}

	if info.KernelVersion != "" {
		kernel := strings.TrimSpace(info.OS + " " + info.KernelVersion)
		if len(parts) > 0 {
			kernel = "(" + kernel + ")"
		}

		parts = append(parts, kernel)
	}

	if len(parts) == 0 {
		if info.OS != "" {
			return info.OS
		}

		return runtime.GOOS
	}

	return strings.Join(parts, " ")
}

func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1

	if v > maxInt64 {
		return maxInt64
	}

	return int64(v)
}

func hostIdentifier() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}

	return "unknown-host"
}
