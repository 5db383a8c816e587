package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for dev auto-migration.
func All() []any {
	return []any{
		&User{},
		&Resource{},
		&Loan{},
		&Reservation{},
		&Fine{},
		&Notification{},
		&SystemConfiguration{},
		&LoanEvent{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
