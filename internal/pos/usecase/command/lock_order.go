package command

import "sort"

// stockLockOrder returns the indexes 0..n-1 ordered by product id, lines of
// the same product keeping their original order. Transactions that touch
// several stock rows update them in this order so two of them never wait on
// each other's rows.
func stockLockOrder(n int, productID func(i int) uint) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return productID(order[a]) < productID(order[b])
	})
	return order
}
