// Package extract runs field extraction on a bounded set of worker goroutines and
// turns every provider failure into a degraded Result.
package extract

import (
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// Result is the outcome of one extraction. A degraded result always carries an empty Order.
type Result struct {
	Order  entity.Order
	Status Status
	Reason string // why the result is degraded; empty when ok
	Raw    []byte // provider payload, when one was received
}

func (r Result) OK() bool { return r.Status == StatusOK }

func degraded(reason string, raw []byte) Result {
	return Result{Status: StatusDegraded, Reason: reason, Raw: raw}
}
