package reconcile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"coffee-queue/internal/core/domain"
)

// QueueStatus derives the guest-facing view for one order: position in the
// queue, estimated wait, readiness. Position is a computed count of
// not-yet-terminal orders ahead, never stored.
func (e *Engine) QueueStatus(id string) (*domain.QueueStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.base[id]
	if !ok {
		return nil, false
	}
	target := e.mergedLocked(o)

	position := 0
	if !target.Status.IsTerminal() {
		for _, other := range e.base {
			if other.ID == target.ID {
				continue
			}
			merged := e.mergedLocked(other)
			if !merged.Status.IsTerminal() && merged.QueueNumber < target.QueueNumber {
				position++
			}
		}
	}

	return &domain.QueueStatus{
		OrderID:       target.ID,
		Position:      position,
		EstimatedWait: formatWait(time.Duration(position) * e.cfg.WaitPerOrder),
		IsReady:       target.Status == domain.OrderStatusCompleted,
		Status:        target.Status,
	}, true
}

func formatWait(d time.Duration) string {
	if d <= 0 {
		return "0 min"
	}
	mins := int(math.Ceil(d.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%d min", mins)
}

func sortByQueueNumber(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].QueueNumber != orders[j].QueueNumber {
			return orders[i].QueueNumber < orders[j].QueueNumber
		}
		return orders[i].ID < orders[j].ID
	})
}
