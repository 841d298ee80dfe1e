package pipeline

import (
	"context"

	"clawdash/config"
	"clawdash/logger"
	"clawdash/processor"
	"clawdash/reader/binance"
	"clawdash/reader/command"
	"clawdash/reader/counters"
	"clawdash/reader/cron"
	"clawdash/reader/ledger"
	"clawdash/reader/machine"
	"clawdash/reader/sessions"
	"clawdash/reader/workspace"
	"clawdash/writer"
)

// FromConfig builds a pipeline from cfg. Mirrors that fail to initialise are
// logged and left out; the local file publisher is always present.
func FromConfig(ctx context.Context, cfg *config.Config, version string) *Pipeline {
	log := logger.GetLogger().WithComponent("pipeline")
	runner := command.NewExecRunner(cfg.Collectors.Command.Timeout)
	binary := cfg.Collectors.Command.Binary

	p := &Pipeline{
		Ledger: ledger.NewReader(cfg.WorkspacePath(cfg.Ledger.Path)),
		Counters: counters.NewReader(
			cfg.WorkspacePath(cfg.Counters.QuotaPath),
			cfg.WorkspacePath(cfg.Counters.Path),
		),
		Sizer: &workspace.Sizer{
			Root:    cfg.Workspace,
			DataDir: cfg.WorkspacePath(cfg.Counters.DataDir),
			Skip:    cfg.Counters.Skip,
		},
		Primary: writer.NewFileWriter(cfg.Output.Path),
		Stats: processor.Options{
			TokenCeiling:  cfg.Stats.TokenCeiling,
			TotalRevenue:  cfg.Stats.TotalRevenue,
			MonthlyTarget: cfg.Stats.MonthlyTarget,
		},
		SampleSessions: cfg.Collectors.Sessions.SampleOnFailure,
		LockPath:       cfg.LockPath(),
		Version:        version,
		log:            log,
	}

	if cfg.Collectors.Jobs.Enabled {
		p.Jobs = cron.NewCollector(runner, binary, cfg.Collectors.Jobs.Args)
	}
	if cfg.Collectors.Sessions.Enabled {
		p.Sessions = sessions.NewCollector(runner, binary, cfg.Collectors.Sessions.Args)
	}
	if m := cfg.Collectors.Machine; m.Enabled {
		p.Machine = machine.NewCollector(m.DiskPath, m.CPUInterval, m.ProcessMatch)
	}
	if pr := cfg.Pricing; pr.Enabled {
		p.Prices = binance.NewPriceSource(pr.BaseURL, pr.Quote, pr.RequestsPerSecond, pr.Burst, pr.Timeout)
	}

	p.Mirrors = buildMirrors(ctx, cfg, log)
	return p
}

func buildMirrors(ctx context.Context, cfg *config.Config, log *logger.Entry) []writer.Publisher {
	policy := writer.RetryPolicy{
		MaxTries:  cfg.Storage.Retry.MaxAttempts,
		BaseDelay: cfg.Storage.Retry.BaseDelay,
		MaxDelay:  cfg.Storage.Retry.MaxDelay,
	}

	var mirrors []writer.Publisher
	add := func(name string, pub writer.Publisher, err error) {
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"mirror": name}).Warn("mirror disabled")
			return
		}
		mirrors = append(mirrors, writer.WithRetry(pub, policy))
	}

	if cfg.Storage.S3.Enabled {
		w, err := writer.NewS3Writer(ctx, cfg.Storage.S3)
		add("s3", w, err)
	}
	if cfg.Storage.Kafka.Enabled {
		w, err := writer.NewKafkaWriter(cfg.Storage.Kafka, cfg.App.Name)
		add("kafka", w, err)
	}
	if cfg.Storage.Redis.Enabled {
		w, err := writer.NewRedisWriter(ctx, cfg.Storage.Redis)
		add("redis", w, err)
	}
	return mirrors
}
