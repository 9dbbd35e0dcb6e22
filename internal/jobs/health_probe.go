package jobs

import (
	"context"
	"time"

	"quizhub/internal/config"
	"quizhub/internal/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type StatusSetter interface {
	SetServing(serving bool)
}

// StartHealthProbe pings storage once immediately and then on every interval tick,
// publishing the result to health. It stops when ctx is done.
func StartHealthProbe(ctx context.Context, cfg config.Config, db Pinger, health StatusSetter, log *logger.Logger) {
	if db == nil || health == nil {
		log.Warn("health probe disabled: missing dependency")
		return
	}
	interval := cfg.HealthProbeInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := cfg.HealthProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	log = log.With("job", "health_probe")

	probe := func() {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		err := db.Ping(tickCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("storage ping failed", "error", err)
			health.SetServing(false)
			return
		}
		health.SetServing(true)
	}

	probe()
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}
