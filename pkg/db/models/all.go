package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// sqlite dev mode and tests.
func All() []any {
	return []any{
		&Tenant{},
		&Client{},
		&Product{},
		&NumberSequence{},
		&Document{},
		&DocumentLine{},
		&StockMovement{},
		&PointsMovement{},
		&Payment{},
		&CheckoutSession{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
