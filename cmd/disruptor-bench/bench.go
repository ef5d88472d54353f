// Copyright (c) 2024 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"

	"github.com/panjf2000/disruptor"
	"github.com/panjf2000/disruptor/pkg/handler"
	"github.com/panjf2000/disruptor/pkg/logging"
	"github.com/panjf2000/disruptor/pkg/math"
	"github.com/panjf2000/disruptor/pkg/metrics"
)

const (
	capacityFlag     = "capacity"
	roundUpFlag      = "round-up"
	producersFlag    = "producers"
	eventsFlag       = "events"
	batchFlag        = "batch"
	waitFlag         = "wait"
	stagesFlag       = "stages"
	lockOSThreadFlag = "lock-os-thread"
	cpusFlag         = "cpus"
	logLevelFlag     = "log-level"
	logFileFlag      = "log-file"
	metricsAddrFlag  = "metrics-addr"
)

type benchConfig struct {
	capacity     int64
	roundUp      bool
	producers    int
	events       int64
	batch        int64
	wait         string
	stages       int
	lockOSThread bool
	cpus         []int
	logLevel     string
	logFile      string
	metricsAddr  string
}

type tick struct {
	value int64
}

func newBenchCommand() *cobra.Command {
	cfg := new(benchConfig)
	cmd := &cobra.Command{
		Use:   "disruptor-bench",
		Short: "Measure the throughput of a disruptor pipeline",
		Long: `Measure the throughput of a disruptor pipeline.

Producers publish events in randomly sized batches into a ring buffer consumed
by a chain of stages, each stage counting the events it sees. The command
fails if the last stage did not see every event exactly once.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&cfg.capacity, capacityFlag, 1024, "ring buffer capacity, a power of two")
	flags.BoolVar(&cfg.roundUp, roundUpFlag, false, "round the capacity up to the next power of two")
	flags.IntVar(&cfg.producers, producersFlag, 1, "number of publishing goroutines, more than one switches to the multi-producer sequencer")
	flags.Int64Var(&cfg.events, eventsFlag, 1_000_000, "total number of events to publish")
	flags.Int64Var(&cfg.batch, batchFlag, 1, "upper bound of the random batch size of every claim")
	flags.StringVar(&cfg.wait, waitFlag, "blocking", "wait strategy of idle consumers: blocking, spin or yield")
	flags.IntVar(&cfg.stages, stagesFlag, 1, "number of chained consumer stages")
	flags.BoolVar(&cfg.lockOSThread, lockOSThreadFlag, false, "lock every event processor to an OS thread")
	flags.IntSliceVar(&cfg.cpus, cpusFlag, nil, "CPUs to pin event processors to, implies --lock-os-thread")
	flags.StringVar(&cfg.logLevel, logLevelFlag, "", "logging level, e.g. debug or info")
	flags.StringVar(&cfg.logFile, logFileFlag, "", "write logs to this file instead of stdout")
	flags.StringVar(&cfg.metricsAddr, metricsAddrFlag, "", "serve Prometheus metrics on this address while the benchmark runs")
	return cmd
}

func (cfg *benchConfig) validate() error {
	if cfg.roundUp && cfg.capacity > 0 {
		cfg.capacity = math.CeilToPowerOfTwo(cfg.capacity)
	}
	switch {
	case cfg.producers < 1:
		return fmt.Errorf("--%s must be at least 1", producersFlag)
	case cfg.events < 1:
		return fmt.Errorf("--%s must be at least 1", eventsFlag)
	case cfg.stages < 1:
		return fmt.Errorf("--%s must be at least 1", stagesFlag)
	case cfg.batch < 1 || cfg.batch >= cfg.capacity:
		return fmt.Errorf("--%s must be between 1 and the capacity minus one", batchFlag)
	}
	return nil
}

func (cfg *benchConfig) logger() (logging.Logger, logging.Flusher, error) {
	level := logging.InfoLevel
	if cfg.logLevel != "" {
		var err error
		if level, err = logging.ParseLevel(cfg.logLevel); err != nil {
			return nil, nil, err
		}
	}
	if cfg.logFile != "" {
		return logging.CreateLoggerAsLocalFile(cfg.logFile, level)
	}
	logger, flush := logging.CreateConsoleLogger(level)
	return logger, flush, nil
}

func (cfg *benchConfig) options(logger logging.Logger) disruptor.Options {
	return disruptor.Options{
		LockOSThread: cfg.lockOSThread || len(cfg.cpus) > 0,
		CPUAffinity:  cfg.cpus,
		Logger:       logger,
	}
}

func (cfg *benchConfig) builder(logger logging.Logger) (*disruptor.Builder[tick], error) {
	b := disruptor.WithRingBuffer[tick](cfg.capacity, disruptor.WithOptions(cfg.options(logger)))
	switch cfg.wait {
	case "blocking":
		b.WithBlockingWait()
	case "spin":
		b.WithSpinWait()
	case "yield":
		b.WithYieldingWait()
	default:
		return nil, fmt.Errorf("unknown wait strategy %q", cfg.wait)
	}
	if cfg.producers > 1 {
		b.WithMultiProducer()
	}
	return b, nil
}

func runBench(cmd *cobra.Command, cfg *benchConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	logger, flush, err := cfg.logger()
	if err != nil {
		return err
	}
	defer flush() //nolint:errcheck

	b, err := cfg.builder(logger)
	if err != nil {
		return err
	}
	counters := make([]*handler.Counter[tick], cfg.stages)
	for i := range counters {
		counters[i] = new(handler.Counter[tick])
		b.WithBarrier(func(s *disruptor.Scope[tick]) {
			s.HandleEvents(counters[i])
		})
	}
	executor, producer, err := b.Build()
	if err != nil {
		return err
	}

	if cfg.metricsAddr != "" {
		stop, err := serveMetrics(cfg.metricsAddr, executor, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	join, err := executor.Spawn()
	if err != nil {
		return err
	}

	start := time.Now()
	var eg errgroup.Group
	share := cfg.events / int64(cfg.producers)
	for i := 0; i < cfg.producers; i++ {
		n := share
		if i == 0 {
			n += cfg.events % int64(cfg.producers)
		}
		eg.Go(func() error {
			return publish(producer, n, cfg.batch)
		})
	}
	err = eg.Wait()
	producer.Drain()
	if joinErr := join.Join(); err == nil {
		err = joinErr
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	last := counters[len(counters)-1]
	if got := last.Events(); got != cfg.events {
		return fmt.Errorf("last stage consumed %d events, want %d", got, cfg.events)
	}
	rate := float64(cfg.events) / elapsed.Seconds()
	logger.Infof("%d producers published %d events through %d stages in %s with %d batches at the last stage",
		cfg.producers, cfg.events, cfg.stages, elapsed, last.Batches())
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d events in %s (%.0f events/s)\n", cfg.events, elapsed, rate)
	return err
}

// publish claims batches of up to maxBatch slots until n events are out.
func publish(producer *disruptor.Producer[tick], n, maxBatch int64) error {
	for n > 0 {
		count := min(1+int64(fastrand.Uint32n(uint32(maxBatch))), n)
		if err := producer.PublishEvents(count, func(e *tick, seq int64) {
			e.value = seq
		}); err != nil {
			return err
		}
		n -= count
	}
	return nil
}

func serveMetrics(addr string, src metrics.Source, logger logging.Logger) (stop func(), err error) {
	reg := prometheus.NewRegistry()
	if err = reg.Register(metrics.NewCollector("bench", src)); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server on %s stopped: %v", addr, err)
		}
	}()
	logger.Infof("serving metrics on %s/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
