package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/envutil"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
)

// ReauditService periodically recomputes every accepted, in-window
// campaign. Recomputation is idempotent, so a pass over an unchanged
// database writes nothing.
type ReauditService interface {
	StartWorker(ctx context.Context)
	// RunOnce sweeps all accepted active goals a single time.
	RunOnce(ctx context.Context) error
}

type reauditService struct {
	db       *gorm.DB
	log      *logger.Logger
	goalRepo repos.GoalRepo
	progress ProgressService
	interval time.Duration
}

func NewReauditService(db *gorm.DB, baseLog *logger.Logger, goalRepo repos.GoalRepo, progress ProgressService) ReauditService {
	return &reauditService{
		db:       db,
		log:      baseLog.With("service", "ReauditService"),
		goalRepo: goalRepo,
		progress: progress,
		interval: envutil.Seconds("REAUDIT_INTERVAL_SECONDS", 5*time.Minute),
	}
}

func (rs *reauditService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rs.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				rs.log.Info("Re-audit worker stopping")
				return
			case <-ticker.C:
				if err := rs.RunOnce(ctx); err != nil {
					rs.log.Error("Re-audit sweep failed", "error", err)
				}
			}
		}
	}()
}

func (rs *reauditService) RunOnce(ctx context.Context) error {
	goals, err := rs.goalRepo.ListAllAcceptedActive(ctx, nil, time.Now())
	if err != nil {
		return err
	}
	var changed int
	for _, goal := range goals {
		_, didChange, err := rs.progress.RecomputeGoal(ctx, goal.ID)
		if err != nil {
			// Goals with unusable criteria are logged and skipped so one
			// bad campaign does not starve the sweep.
			if apierr.Is(err, apierr.CodeInvalidCriteria) {
				rs.log.Warn("Skipping goal with invalid criteria", "goal_id", goal.ID)
				continue
			}
			rs.log.Error("Re-audit recompute failed", "goal_id", goal.ID, "error", err)
			continue
		}
		if didChange {
			changed++
		}
	}
	if changed > 0 {
		rs.log.Info("Re-audit sweep applied changes", "goals_seen", len(goals), "goals_changed", changed)
	}
	return nil
}
