package domain

// PageResult holds the product names of one catalog page, in listing order.
// An empty ProductNames means the category ran out of pages.
type PageResult struct {
	PageNumber   int      `json:"page_number"`
	ProductNames []string `json:"product_names"`
}
