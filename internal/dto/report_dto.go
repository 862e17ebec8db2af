package dto

// ─── Query DTOs ──────────────────────────────────────────────────────────────

// SalesReportQuery carries optional inclusive calendar-date bounds.
type SalesReportQuery struct {
	Start string `form:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `form:"end"   validate:"omitempty,datetime=2006-01-02"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SalesReportResponse struct {
	TotalSales       int64   `json:"total_sales"`
	TotalRevenue     string  `json:"total_revenue"`
	AverageSaleValue string  `json:"average_sale_value"`
	PeriodStart      *string `json:"period_start"`
	PeriodEnd        *string `json:"period_end"`
}

type InventorySummaryResponse struct {
	TotalBatches       int64 `json:"total_batches"`
	TotalQuantity      int64 `json:"total_quantity"`
	LowStockBatches    int64 `json:"low_stock_batches"`
	ExpiringBatches    int64 `json:"expiring_batches"`
	LowStockThreshold  int   `json:"low_stock_threshold"`
	ExpiringWithinDays int   `json:"expiring_within_days"`
}

type InventoryValueResponse struct {
	TotalCostValue    string `json:"total_cost_value"`
	TotalSellingValue string `json:"total_selling_value"`
	PotentialProfit   string `json:"potential_profit"`
}

type ProductRevenue struct {
	Name    string `json:"name"`
	Revenue string `json:"revenue"`
}

type ProductQuantity struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// MonthRevenue is one bar of the monthly sales chart; Month is YYYY-MM.
type MonthRevenue struct {
	Month   string `json:"month"`
	Revenue string `json:"revenue"`
}

type DashboardResponse struct {
	RevenueToday          string            `json:"revenue_today"`
	RevenueMonth          string            `json:"revenue_month"`
	SalesToday            int64             `json:"sales_today"`
	CustomersMonth        int64             `json:"customers_month"`
	MonthlySales          []MonthRevenue    `json:"monthly_sales"`
	TopProductsByRevenue  []ProductRevenue  `json:"top_products_by_revenue"`
	RevenueLast30Days     string            `json:"revenue_last_30_days"`
	TopProductsByQuantity []ProductQuantity `json:"top_products_by_quantity"`
}
