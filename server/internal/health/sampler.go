package health

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSampler reads utilisation from the operating system via gopsutil.
// CPU is measured since the previous call, so the first sample may be 0.
type HostSampler struct{}

// Sample implements Sampler.
func (HostSampler) Sample(ctx context.Context) (float64, float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, fmt.Errorf("cpu: %w", err)
	}
	if len(pcts) == 0 {
		return 0, 0, fmt.Errorf("cpu: no samples")
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("memory: %w", err)
	}
	return pcts[0], vm.UsedPercent, nil
}
