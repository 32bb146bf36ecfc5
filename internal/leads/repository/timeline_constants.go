package repository

// ActorType constants identify the category of entity that produced a timeline event.
const (
	ActorTypeUser   = "User"   // Human user acting through the API
	ActorTypeSystem = "System" // Internal process (win saga escalation, reconciler)
)

// EventType constants identify the nature of a timeline event.
const (
	EventTypeWon                = "won"
	EventTypeLost               = "lost"
	EventTypeReactivated        = "reactivated"
	EventTypeWinPartiallyFailed = "win_partially_failed"
	EventTypeLedgerChange       = "ledger_change"
)

// EventTitle constants are the human-readable labels shown in the lead history.
const (
	EventTitleWon                = "Lead won"
	EventTitleLost               = "Lead lost"
	EventTitleReactivated        = "Lead reactivated"
	EventTitleWinPartiallyFailed = "Order created, win not recorded"
	EventTitleLineAdded          = "Product added"
	EventTitleLineUpdated        = "Product changed"
	EventTitleLineRemoved        = "Product removed"
)
