package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// cpuState is the per-PID bookkeeping a Sampler keeps between ticks so it
// can turn gopsutil's cumulative CPU-time counters into a differential
// CPU percent, mirroring the teacher's differential-sampling approach in
// its host metrics collector (adapted from whole-host disk/IO deltas to
// per-process CPU deltas).
type cpuState struct {
	cpuSeconds float64
	observedAt time.Time
}

// Sampler wakes on a fixed interval, enumerates processes, and batches
// one sample per process into the Store in a single transaction (spec
// §4.4).
type Sampler struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger

	prev map[int32]cpuState

	listProcesses func(ctx context.Context) ([]*process.Process, error)
}

// NewSampler creates a Sampler writing into store, ticking every
// interval.
func NewSampler(store *Store, interval time.Duration, logger zerolog.Logger) *Sampler {
	return &Sampler{
		store:    store,
		interval: interval,
		logger:   logger,
		prev:     make(map[int32]cpuState),
		listProcesses: func(ctx context.Context) ([]*process.Process, error) {
			return process.ProcessesWithContext(ctx)
		},
	}
}

// Run blocks, sampling every s.interval until ctx is cancelled. Intended
// to run as one errgroup-supervised background task (spec §5).
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("telemetry sample tick failed")
			}
		}
	}
}

func (s *Sampler) tick(ctx context.Context) error {
	procs, err := s.listProcesses(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	samples := make([]Sample, 0, len(procs))
	seen := make(map[int32]cpuState, len(procs))

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}

		times, err := p.TimesWithContext(ctx)
		if err != nil {
			continue
		}
		cpuSeconds := times.User + times.System

		mem, err := p.MemoryInfoWithContext(ctx)
		var rss uint64
		if err == nil && mem != nil {
			rss = mem.RSS
		}

		var cpuPercent float64
		if prev, ok := s.prev[p.Pid]; ok {
			elapsed := now.Sub(prev.observedAt).Seconds()
			if elapsed > 0 {
				delta := cpuSeconds - prev.cpuSeconds
				if delta < 0 {
					delta = 0
				}
				cpuPercent = (delta / elapsed) * 100
			}
		}
		seen[p.Pid] = cpuState{cpuSeconds: cpuSeconds, observedAt: now}

		samples = append(samples, Sample{
			Timestamp:  now,
			PID:        p.Pid,
			Name:       name,
			CPUPercent: cpuPercent,
			MemBytes:   rss,
		})
	}

	s.prev = seen

	return s.store.InsertBatch(samples)
}
