// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

//go:build linux

package metrics

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// ioCollector exports the process I/O counters of /proc/<pid>/io, which
// reflect segment appends and reads.
type ioCollector struct {
	path  string
	descs map[string]*prometheus.Desc // /proc field => desc
}

func newIOCollector() *ioCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", name), help, nil, nil)
	}
	return &ioCollector{
		path: fmt.Sprintf("/proc/%d/io", os.Getpid()),
		descs: map[string]*prometheus.Desc{
			"syscr":       desc("read_syscalls_total", "Read syscalls issued by the process."),
			"syscw":       desc("write_syscalls_total", "Write syscalls issued by the process."),
			"read_bytes":  desc("read_bytes_total", "Bytes fetched from the storage layer."),
			"write_bytes": desc("write_bytes_total", "Bytes sent to the storage layer."),
		},
	}
}

func (c *ioCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *ioCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.read()
	if err != nil {
		return
	}
	for field, value := range stats {
		ch <- prometheus.MustNewConstMetric(c.descs[field], prometheus.CounterValue, float64(value))
	}
}

func (c *ioCollector) read() (map[string]int64, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stats := make(map[string]int64, len(c.descs))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		field, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		if _, ok := c.descs[field]; !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			logger.Warn("unable to parse io value", "field", field, "err", err)
			continue
		}
		stats[field] = n
	}
	return stats, scanner.Err()
}

func registerIOCollector() {
	if err := prometheus.Register(newIOCollector()); err != nil {
		logger.Warn("unable to register io collector", "err", err)
	}
}
