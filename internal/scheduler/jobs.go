package scheduler

import (
	"context"
	"fmt"
	"time"

	"wealthsync/internal/config"
	"wealthsync/internal/services"
)

// Services are the job implementations driven by the scheduler.
type Services struct {
	Snapshots   services.NetWorthSnapshotServicer
	Prices      services.HoldingPriceServicer
	Connections services.ConnectionSyncServicer
	FundPrices  services.RetirementPriceServicer
}

// BuildJobs wires the four sync jobs to their cron expressions. Fund prices
// and holding prices are scheduled ahead of the nightly snapshot.
func BuildJobs(svc Services, cfg config.Jobs, now func() time.Time) []Job {
	return []Job{
		{
			Name: services.JobFundPrices,
			Spec: cfg.FundPriceCron,
			Run: func(ctx context.Context) error {
				_, err := svc.FundPrices.RefreshLatest(ctx)
				return err
			},
		},
		{
			Name: services.JobHoldingPrices,
			Spec: cfg.HoldingPriceCron,
			Run: func(ctx context.Context) error {
				_, err := svc.Prices.RefreshAll(ctx, now().UTC(), cfg)
				return err
			},
		},
		{
			Name: services.JobConnectionSync,
			Spec: cfg.ConnectionSyncCron,
			Run: func(ctx context.Context) error {
				_, err := svc.Connections.SyncAll(ctx)
				return err
			},
		},
		{
			Name: services.JobNetWorthSnapshot,
			Spec: cfg.NetWorthSnapshotCron,
			Run: func(ctx context.Context) error {
				_, err := svc.Snapshots.RunBatch(ctx, now().UTC())
				return err
			},
		},
	}
}

// Find returns the job called name.
func Find(jobs []Job, name string) (Job, error) {
	for _, j := range jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return Job{}, fmt.Errorf("unknown job %q", name)
}
