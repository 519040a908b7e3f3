package pipeline

// PartitionByCategory splits a set into transactions that carry a category
// and those that do not, preserving order in both halves.
func PartitionByCategory(set *TransactionSet) (*TransactionSet, *TransactionSet) {
	withCategory := NewTransactionSet()
	withoutCategory := NewTransactionSet()

	for _, tx := range set.Transactions() {
		if tx.HasCategory() {
			withCategory.Put(tx)
		} else {
			withoutCategory.Put(tx)
		}
	}

	return withCategory, withoutCategory
}
