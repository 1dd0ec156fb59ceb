package service

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// UserSyncer runs one per-user reconciliation
type UserSyncer interface {
	SyncUser(ctx context.Context, userID string) (int, error)
}

// FleetFailure records one user's sync error
type FleetFailure struct {
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

// FleetResult is the aggregate report of a fleet run. OK is true only
// when no user failed; the report itself is always produced.
type FleetResult struct {
	OK          bool           `json:"ok"`
	TotalUsers  int            `json:"totalUsers"`
	TotalSynced int            `json:"totalSynced"`
	Failures    []FleetFailure `json:"failures"`
}

// Fleet fans a reconciliation out over many users with bounded
// concurrency. One user's failure never aborts the others.
type Fleet struct {
	syncer      UserSyncer
	concurrency int
}

func NewFleet(syncer UserSyncer, concurrency int) *Fleet {
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Fleet{syncer: syncer, concurrency: concurrency}
}

// Run processes every user ID through a shared pull-queue and returns
// the aggregate report. It never returns an error.
func (f *Fleet) Run(ctx context.Context, userIDs []string) *FleetResult {
	result := &FleetResult{
		TotalUsers: len(userIDs),
		Failures:   []FleetFailure{},
	}
	if len(userIDs) == 0 {
		result.OK = true
		return result
	}

	queue := make(chan string, len(userIDs))
	for _, id := range userIDs {
		queue <- id
	}
	close(queue)

	workers := f.concurrency
	if workers > len(userIDs) {
		workers = len(userIDs)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for userID := range queue {
				synced, err := f.syncer.SyncUser(gctx, userID)
				mu.Lock()
				if err != nil {
					log.Printf("Fleet sync failed for user %s: %v", userID, err)
					result.Failures = append(result.Failures, FleetFailure{
						UserID: userID,
						Error:  err.Error(),
					})
				} else {
					result.TotalSynced += synced
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	result.OK = len(result.Failures) == 0
	log.Printf("Fleet run complete: %d user(s), %d synced, %d failure(s)",
		result.TotalUsers, result.TotalSynced, len(result.Failures))
	return result
}
