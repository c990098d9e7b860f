package pkg

import "golang.org/x/exp/constraints"

// Cost. numeric type of a branch cost, any type with + and a total order.
type Cost interface {
	constraints.Integer | constraints.Float
}
