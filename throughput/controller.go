package throughput

import (
	"context"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// DefaultRenewInterval is the cycle length of a group.
const DefaultRenewInterval = time.Second

// GroupController owns the throttler of one group and renews its cycle.
type GroupController struct {
	container   string
	group       Group
	throttler   *RequestThrottler
	coordinator *GlobalCoordinator
	interval    time.Duration
	logger      types.Logger
	metrics     types.ThroughputMetrics
}

func newGroupController(container string, g Group, interval time.Duration, logger types.Logger, metrics types.ThroughputMetrics) *GroupController {
	return &GroupController{
		container: container,
		group:     g,
		throttler: NewRequestThrottler(g.Name, g.TargetThroughput),
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
	}
}

// Group returns the group definition.
func (c *GroupController) Group() Group {
	return c.group
}

// Throttler returns the group's throttler.
func (c *GroupController) Throttler() *RequestThrottler {
	return c.throttler
}

// IsGlobal reports whether the budget is coordinated with other clients.
func (c *GroupController) IsGlobal() bool {
	return c.coordinator != nil
}

// start attaches the coordinator of a global group and sizes the first cycle.
func (c *GroupController) start(ctx context.Context, coordinator *GlobalCoordinator) error {
	if err := coordinator.Start(ctx); err != nil {
		return err
	}

	share, err := coordinator.Share(ctx, c.group.TargetThroughput)
	if err != nil {
		if cerr := coordinator.Close(context.WithoutCancel(ctx)); cerr != nil {
			c.logger.Warn("failed to remove load report", "group", c.group.Name, "error", cerr)
		}

		return err
	}
	c.coordinator = coordinator
	c.throttler.RenewThroughputUsageCycle(share)

	return nil
}

// run renews the cycle every interval until ctx is cancelled.
func (c *GroupController) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.renew(ctx)
		}
	}
}

// renew closes the current cycle. A global group reports its consumption
// and then sizes the next cycle from its share; on coordinator errors it
// keeps the previous budget.
func (c *GroupController) renew(ctx context.Context) {
	scheduled := c.group.TargetThroughput

	if c.coordinator != nil {
		scheduled = c.throttler.ScheduledThroughput()

		if err := c.coordinator.Report(ctx, c.throttler.Consumed()); err != nil {
			c.logger.Warn("failed to report group load", "container", c.container, "group", c.group.Name, "error", err)
		} else if share, err := c.coordinator.Share(ctx, c.group.TargetThroughput); err != nil {
			c.logger.Warn("failed to compute group share", "container", c.container, "group", c.group.Name, "error", err)
		} else {
			scheduled = share
		}
	}

	used := c.throttler.RenewThroughputUsageCycle(scheduled)
	c.metrics.RecordThroughputCycle(c.group.Name, used)
	c.logger.Debug("throughput cycle renewed",
		"container", c.container, "group", c.group.Name, "used_ratio", used, "scheduled", scheduled)
}

// stop removes the client's load report.
func (c *GroupController) stop(ctx context.Context) {
	if c.coordinator == nil {
		return
	}

	if err := c.coordinator.Close(ctx); err != nil {
		c.logger.Warn("failed to close group coordinator", "container", c.container, "group", c.group.Name, "error", err)
	}
}
