package orders

import "github.com/ariefcatur/go-storefront-orders/internal/model"

var validNext = map[model.OrderStatus]map[model.OrderStatus]bool{
	model.OrderPending:   {model.OrderPaid: true, model.OrderCancelled: true},
	model.OrderPaid:      {},
	model.OrderCancelled: {},
}

func CanTransition(from, to model.OrderStatus) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transition leaves s.
func Terminal(s model.OrderStatus) bool {
	return len(validNext[s]) == 0
}
