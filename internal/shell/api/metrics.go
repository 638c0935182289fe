package api

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// PrometheusNamespace prefixes every exported metric.
const PrometheusNamespace = "ngreen"

// scrapeTimeout bounds the state load done for one scrape.
const scrapeTimeout = 5 * time.Second

// =============================================================================
// State Collector
// =============================================================================

// stateCollector reads the persisted state on every scrape, so the metrics
// follow deploys made by other invocations of the CLI.
type stateCollector struct {
	h *Handler

	up        *prometheus.Desc
	liveIndex *prometheus.Desc
	nextIndex *prometheus.Desc
	poolSize  *prometheus.Desc
	slotInfo  *prometheus.Desc
}

func newStateCollector(h *Handler) *stateCollector {
	project := prometheus.Labels{"project": h.config.ProjectName}
	return &stateCollector{
		h: h,
		up: prometheus.NewDesc(
			prometheus.BuildFQName(PrometheusNamespace, "state", "up"),
			"1 if the deployment state could be loaded and fits the pool.",
			nil, project),
		liveIndex: prometheus.NewDesc(
			prometheus.BuildFQName(PrometheusNamespace, "state", "live_slot_index"),
			"Pool index of the live slot, -1 before the first deploy.",
			nil, project),
		nextIndex: prometheus.NewDesc(
			prometheus.BuildFQName(PrometheusNamespace, "state", "next_slot_index"),
			"Pool index the next deploy will use.",
			nil, project),
		poolSize: prometheus.NewDesc(
			prometheus.BuildFQName(PrometheusNamespace, "pool", "size"),
			"Number of slots in the port pool.",
			nil, project),
		slotInfo: prometheus.NewDesc(
			prometheus.BuildFQName(PrometheusNamespace, "slot", "info"),
			"One series per pool slot. live is 1 for the slot serving traffic.",
			[]string{"port", "version", "live"}, project),
	}
}

// Describe implements prometheus.Collector.
func (c *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.liveIndex
	ch <- c.nextIndex
	ch <- c.poolSize
	ch <- c.slotInfo
}

// Collect implements prometheus.Collector.
func (c *stateCollector) Collect(ch chan<- prometheus.Metric) {
	pool := c.h.config.Pool
	ch <- prometheus.MustNewConstMetric(c.poolSize, prometheus.GaugeValue, float64(len(pool)))

	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	state, err := c.h.store.Load(ctx)
	if err == nil {
		err = state.CheckPool(pool)
	}
	if err != nil {
		c.h.logger.Warn("metrics scrape could not read state", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	live := -1
	if state.LiveSlotIndex != nil {
		live = *state.LiveSlotIndex
	}
	ch <- prometheus.MustNewConstMetric(c.liveIndex, prometheus.GaugeValue, float64(live))
	if len(pool) == 0 {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.nextIndex, prometheus.GaugeValue, float64(state.NextDeploySlotIndex%len(pool)))

	for _, slot := range deployment.DescribeSlots(state, pool, c.h.config.ProjectName) {
		ch <- prometheus.MustNewConstMetric(c.slotInfo, prometheus.GaugeValue, 1,
			strconv.Itoa(slot.Port), slot.Version, strconv.FormatBool(slot.Live))
	}
}

// newRegistry builds the registry served on /metrics.
func newRegistry(h *Handler) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(newStateCollector(h))
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}
