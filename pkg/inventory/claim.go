package inventory

import (
	"context"

	"github.com/AccelByte/extend-drop-farmer/pkg/common"
	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// autoClaim claims every claimable item that is not cooling down, one at a time.
// A successful batch schedules a single forced refresh.
func (r *Reconciler) autoClaim(ctx context.Context, gen uint64) {
	r.mu.Lock()
	var candidates []gateway.InventoryItem
	for _, item := range r.items {
		if item.Claimable() {
			candidates = append(candidates, item)
		}
	}
	r.mu.Unlock()

	claimed := 0
	for _, item := range candidates {
		if ctx.Err() != nil {
			return
		}

		now := r.now()
		last, ok, err := r.ledger.LastAttempt(ctx, item.ID)
		if err != nil {
			logrus.Warnf("claim ledger lookup for %s failed, skipping: %v", item.ID, err)
			continue
		}
		if ok && CoolingDown(last, now, r.cfg.ClaimCooldown) {
			continue
		}
		if err := r.ledger.MarkAttempt(ctx, item.ID, now); err != nil {
			logrus.Warnf("claim ledger write for %s failed, skipping: %v", item.ID, err)
			continue
		}

		err = r.src.ClaimDrop(ctx, *item.ClaimRef)
		if gateway.IsAuthInvalid(err) {
			r.mu.Lock()
			stale := gen != r.generation
			if !stale {
				r.resetLocked()
			}
			r.mu.Unlock()
			if !stale {
				r.tasks.CancelAll()
				metrics.ClaimAttemptsTotal.WithLabelValues(metrics.OutcomeAuth).Inc()
				logrus.Warnf("claim of %s rejected: session is no longer valid", item.ID)
				r.publish(event.NewAuthError("claim: " + err.Error()))
			}
			return
		}

		r.mu.Lock()
		if gen != r.generation {
			r.mu.Unlock()
			return
		}
		status := ClaimStatus{DropID: item.ID, Title: item.Title, Game: item.Game, At: now}
		if err != nil {
			re := gateway.AsRemoteError(err)
			status.Code = re.Code
			status.Message = re.Message
			r.claims[item.ID] = status
			r.mu.Unlock()

			metrics.ClaimAttemptsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			logrus.Errorf("claim of %s (%s) failed: %v", item.ID, item.Title, err)
			continue
		}

		status.OK = true
		r.claims[item.ID] = status
		r.markClaimedLocked(item.ID)
		r.mu.Unlock()

		metrics.ClaimAttemptsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		logrus.Infof("claimed drop %s (%s) for %s", item.ID, item.Title, item.Game)
		r.publish(event.NewDropClaimed(item.ID, item.Title, item.Game))
		claimed++
	}

	if claimed > 0 {
		r.scheduleFollowUp(ctx)
	}
}

// markClaimedLocked applies the claim locally until the next fetch confirms it.
func (r *Reconciler) markClaimedLocked(id string) {
	for i := range r.items {
		if r.items[i].ID != id {
			continue
		}
		r.items[i].Status = gateway.StatusClaimed
		r.items[i].EarnedMinutes = r.items[i].RequiredMinutes
		r.confirmed[id] = r.items[i].EarnedMinutes
	}
}

// scheduleFollowUp queues one forced refresh. Claims made while a follow-up
// is already waiting ride on that one. ctx is the reconciler lifetime.
func (r *Reconciler) scheduleFollowUp(ctx context.Context) {
	r.tasks.Ensure(ctx, taskFollowUp, "", func(taskCtx context.Context) {
		if !common.Sleep(taskCtx, r.cfg.FollowUpDelay) {
			return
		}
		// release the slot so claims from this refresh can queue the next one
		r.tasks.Cancel(taskFollowUp)
		r.Refresh(ctx, true)
	})
}
