package models

// ConfirmationKind distinguishes the two follow-up questions the backend can
// ask before acting.
type ConfirmationKind int

const (
	ConfirmSearch ConfirmationKind = iota
	ConfirmUpdate
)

func (k ConfirmationKind) String() string {
	if k == ConfirmUpdate {
		return "update"
	}
	return "search"
}

// PendingConfirmation is the transient confirmation-pending state. While one
// exists, the next submitted input answers the backend's question instead of
// starting a new query. At most one instance is live at a time.
type PendingConfirmation struct {
	Kind          ConfirmationKind
	OriginalQuery string
	// KnowledgeID is set only for ConfirmUpdate.
	KnowledgeID string
	// Prompt is the backend's confirmation question, shown but never stored
	// as a completed turn.
	Prompt string
}
