package notifier

// Domain event constructors. The payload stays untyped here so the bus does
// not depend on the catalog package; consumers type-assert what they need.
// Publishers use PublishSync for these so invalidation completes before the
// mutation call returns.

// NewProductCreatedEvent builds a product.created event
func NewProductCreatedEvent(product interface{}) *Event {
	return NewEvent(EventProductCreated, SeverityInfo, "Product created").
		WithData("product", product)
}

// NewProductUpdatedEvent builds a product.updated event
func NewProductUpdatedEvent(product interface{}) *Event {
	return NewEvent(EventProductUpdated, SeverityInfo, "Product updated").
		WithData("product", product)
}

// NewProductDeletedEvent builds a product.deleted event
func NewProductDeletedEvent(productID string) *Event {
	return NewEvent(EventProductDeleted, SeverityInfo, "Product deleted").
		WithData("id", productID)
}

// NewProductsBulkCreatedEvent builds a products.bulk_created event
func NewProductsBulkCreatedEvent(products interface{}) *Event {
	return NewEvent(EventProductsBulkCreated, SeverityInfo, "Products bulk created").
		WithData("products", products)
}

// NewProductsBulkUpdatedEvent builds a products.bulk_updated event
func NewProductsBulkUpdatedEvent(products interface{}) *Event {
	return NewEvent(EventProductsBulkUpdated, SeverityInfo, "Products bulk updated").
		WithData("products", products)
}
