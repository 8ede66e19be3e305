package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-auth-bridge/config"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

// SweepTarget names a store whose expired records should be purged.
type SweepTarget struct {
	Name  string
	Store ports.Sweeper
}

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Targets []SweepTarget        // Required: at least one target
	Config  config.SweeperConfig // Required: sweep interval
	Logger  *slog.Logger         // Optional: structured logger
}

// SweeperService periodically purges expired sessions and abandoned login flows.
// Lookups already hide expired records; sweeping only reclaims space.
type SweeperService struct {
	targets []SweepTarget
	config  config.SweeperConfig
	logger  *slog.Logger
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if len(opts.Targets) == 0 {
		return nil, errors.New("at least one sweep target is required")
	}
	for _, t := range opts.Targets {
		if t.Store == nil {
			return nil, fmt.Errorf("sweep target %q has no store", t.Name)
		}
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("sweeper interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SweeperService{
		targets: opts.Targets,
		config:  opts.Config,
		logger:  logger.With("component", "sweeper_service"),
	}, nil
}

// Run sweeps on the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting sweeper service", "interval", s.config.Interval)

	// Jitter keeps replicas started together from sweeping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && !isContextCancellation(err) {
			s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce purges every target once and returns the total number of records removed.
// A failing target does not stop the others; their errors are joined.
func (s *SweeperService) SweepOnce(ctx context.Context) (int64, error) {
	var (
		total int64
		errs  []error
	)
	for _, t := range s.targets {
		n, err := t.Store.PurgeExpired(ctx)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", t.Name, err))
			continue
		}
		if n > 0 {
			s.logger.DebugContext(ctx, "purged expired records", "target", t.Name, "count", n)
		}
	}
	return total, errors.Join(errs...)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
