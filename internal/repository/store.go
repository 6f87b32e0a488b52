package repository

import "database/sql"

// Store bundles the repos behind one value.  It satisfies the store
// interfaces of the ticketing, collab and maintenance packages.
type Store struct {
    *TxRunner
    *EventRepo
    *TierRepo
    *AttendeeRepo
    *PaymentRepo
    *DiscussionRepo
}

func NewStore(db *sql.DB) *Store {
    tx := NewTxRunner(db)
    return &Store{
        TxRunner:       tx,
        EventRepo:      NewEventRepo(db, tx),
        TierRepo:       NewTierRepo(db),
        AttendeeRepo:   NewAttendeeRepo(db),
        PaymentRepo:    NewPaymentRepo(db),
        DiscussionRepo: NewDiscussionRepo(db),
    }
}
