package orderControllers

import (
	"fmt"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/models"
)

type transition struct {
	from, to models.OrderStatus
}

// transitions lists every allowed (current, requested) pair.
var transitions = map[transition]struct{}{
	{models.OrderStatusPending, models.OrderStatusPaid}:      {},
	{models.OrderStatusPending, models.OrderStatusCancelled}: {},
	{models.OrderStatusPaid, models.OrderStatusShipped}:      {},
	{models.OrderStatusShipped, models.OrderStatusDelivered}: {},
}

func CanTransition(from, to models.OrderStatus) bool {
	_, ok := transitions[transition{from, to}]
	return ok
}

func checkTransition(from, to models.OrderStatus) error {
	if !CanTransition(from, to) {
		return apperr.New(apperr.ErrIllegalTransition, fmt.Sprintf("cannot move order from %s to %s", from, to))
	}
	return nil
}
