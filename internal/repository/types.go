package repository

// StampCardListFilter 顾客集点卡列表过滤条件
type StampCardListFilter struct {
	Page       int
	PageSize   int
	CustomerID uint
	BusinessID uint
}

// StampTransactionListFilter 集点流水列表过滤条件
type StampTransactionListFilter struct {
	Page       int
	PageSize   int
	BusinessID uint
	CustomerID uint
	Status     string
}
