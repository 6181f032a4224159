package storefront

// PendingCartMutations reports how many mutations of productID hold or wait
// for its lock.
func PendingCartMutations(c *CartSynchronizer, productID int64) int {
	return c.locks.pending(productID)
}

// PendingCartFetches reports how many Fetch callers share the in-flight request.
func PendingCartFetches(c *CartSynchronizer) int {
	return int(c.fetchers.Load())
}
