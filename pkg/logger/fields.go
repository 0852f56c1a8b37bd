package logger

const (
	FieldError       = "error"
	FieldUserID      = "user_id"
	FieldURL         = "url"
	FieldProductCode = "product_code"
	FieldOrderID     = "order_id"
	FieldStrategy    = "strategy"
	FieldCount       = "count"
)
