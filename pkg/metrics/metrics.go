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

// Package metrics exports the progress of a disruptor pipeline as Prometheus
// metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/panjf2000/disruptor"
)

const namespace = "disruptor"

// Source is the view of a pipeline the collector reads, *disruptor.Executor
// implements it.
type Source interface {
	Cursor() int64
	BufferSize() int64
	Consumers() []disruptor.ConsumerInfo
}

var _ Source = (*disruptor.Executor)(nil)

// Collector is a prometheus.Collector that snapshots a pipeline on every scrape.
type Collector struct {
	src Source

	cursor     *prometheus.Desc
	bufferSize *prometheus.Desc
	sequence   *prometheus.Desc
	lag        *prometheus.Desc
	state      *prometheus.Desc
}

// NewCollector returns a collector for src, every metric carries a "pipeline"
// label set to pipeline.
func NewCollector(pipeline string, src Source) *Collector {
	labels := prometheus.Labels{"pipeline": pipeline}
	consumer := []string{"consumer", "stage"}
	return &Collector{
		src: src,
		cursor: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "cursor"),
			"Highest sequence published by producers.",
			nil, labels,
		),
		bufferSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "buffer_size"),
			"Capacity of the ring buffer.",
			nil, labels,
		),
		sequence: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consumer", "sequence"),
			"Highest sequence processed by the event processor.",
			consumer, labels,
		),
		lag: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consumer", "lag"),
			"Number of published events the event processor has yet to process.",
			consumer, labels,
		),
		state: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consumer", "state"),
			"Run state of the event processor, 0 idle, 1 waiting, 2 processing, 3 drained.",
			consumer, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cursor
	ch <- c.bufferSize
	ch <- c.sequence
	ch <- c.lag
	ch <- c.state
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	cursor := c.src.Cursor()
	ch <- prometheus.MustNewConstMetric(c.cursor, prometheus.GaugeValue, float64(cursor))
	ch <- prometheus.MustNewConstMetric(c.bufferSize, prometheus.GaugeValue, float64(c.src.BufferSize()))
	for _, info := range c.src.Consumers() {
		stage := strconv.Itoa(info.Stage)
		ch <- prometheus.MustNewConstMetric(c.sequence, prometheus.GaugeValue, float64(info.Sequence), info.Name, stage)
		// The consumer snapshot is taken after the cursor, it may be ahead.
		ch <- prometheus.MustNewConstMetric(c.lag, prometheus.GaugeValue, float64(max(cursor-info.Sequence, 0)), info.Name, stage)
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(info.State), info.Name, stage)
	}
}
