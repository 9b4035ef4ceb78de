// Package registry assembles the failover manager from configuration: one
// factory per source, pacer overrides from the per-source settings, and
// disabled sources left out entirely.
package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chanscan/chanscan/internal/config"
	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/fetch/baostock"
	"github.com/chanscan/chanscan/internal/fetch/eastmoney"
	"github.com/chanscan/chanscan/internal/fetch/sina"
	"github.com/chanscan/chanscan/internal/fetch/tencent"
	"github.com/chanscan/chanscan/internal/fetch/tonghuashun"
	"github.com/chanscan/chanscan/internal/fetch/tushare"
	"github.com/chanscan/chanscan/internal/fetch/yahoo"
	"github.com/chanscan/chanscan/internal/market"
	"github.com/chanscan/chanscan/internal/net/pacer"
)

// factories builds each source from its settings. Map order is irrelevant;
// the manager sorts by priority at registration.
var factories = map[string]func(config.Source) fetch.Fetcher{
	"tencent": func(s config.Source) fetch.Fetcher {
		return tencent.New(pacerOpts(s, tencent.WithPacer)...)
	},
	"sina": func(s config.Source) fetch.Fetcher {
		return sina.New(pacerOpts(s, sina.WithPacer)...)
	},
	"tonghuashun": func(s config.Source) fetch.Fetcher {
		return tonghuashun.New(pacerOpts(s, tonghuashun.WithPacer)...)
	},
	"eastmoney": func(s config.Source) fetch.Fetcher {
		return eastmoney.New(pacerOpts(s, eastmoney.WithPacer)...)
	},
	"tushare": func(s config.Source) fetch.Fetcher {
		opts := []tushare.Option{tushare.WithToken(s.Token)}
		if s.RateLimitPerMinute > 0 {
			opts = append(opts, tushare.WithPacer(pacer.NewBudget(s.RateLimitPerMinute)))
		}
		return tushare.New(opts...)
	},
	"baostock": func(s config.Source) fetch.Fetcher {
		return baostock.New()
	},
	"yahoo": func(s config.Source) fetch.Fetcher {
		return yahoo.New(pacerOpts(s, yahoo.WithPacer)...)
	},
}

// pacerOpts turns sleep_min_ms/sleep_max_ms into a single pacer option.
func pacerOpts[O any](s config.Source, with func(pacer.Pacer) O) []O {
	if s.SleepMinMs <= 0 {
		return nil
	}
	maxMs := s.SleepMaxMs
	if maxMs < s.SleepMinMs {
		maxMs = s.SleepMinMs
	}
	p := pacer.NewInterval(time.Duration(s.SleepMinMs)*time.Millisecond, time.Duration(maxMs)*time.Millisecond)
	return []O{with(p)}
}

// prioritized overrides a source's default priority from config.
type prioritized struct {
	fetch.Fetcher
	priority float64
}

func (p prioritized) Priority() float64 { return p.priority }

// prioritizedBatch keeps the batch capability visible through the wrapper.
type prioritizedBatch struct {
	prioritized
	batch fetch.BatchQuoter
}

func (p prioritizedBatch) GetBatchRealtimeQuotes(ctx context.Context, codes []string) (map[string]*market.Quote, error) {
	return p.batch.GetBatchRealtimeQuotes(ctx, codes)
}

func withPriority(f fetch.Fetcher, priority float64) fetch.Fetcher {
	if priority == 0 {
		return f
	}
	w := prioritized{Fetcher: f, priority: priority}
	if b, ok := f.(fetch.BatchQuoter); ok {
		return prioritizedBatch{prioritized: w, batch: b}
	}
	return w
}

// BuildManager registers every enabled source with the failover manager.
// Unknown source names in the config are logged and skipped.
func BuildManager(cfg *config.Config) *fetch.Manager {
	mgr := fetch.NewManager(nil,
		fetch.WithCooldown(cfg.Manager.Cooldown()),
		fetch.WithCacheTTLs(cfg.Cache.BarsTTL(), cfg.Cache.QuotesTTL()),
	)

	for name, build := range factories {
		src := cfg.Sources[name]
		if !src.IsEnabled() {
			log.Info().Str("source", name).Msg("source disabled by config")
			continue
		}
		mgr.Register(withPriority(build(src), src.Priority))
	}
	for name := range cfg.Sources {
		if _, known := factories[name]; !known {
			log.Warn().Str("source", name).Msg("unknown source in config, skipping")
		}
	}
	return mgr
}
