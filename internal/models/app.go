package models

// AppModel represents the UI state - only local UI concerns plus the latest
// snapshot pushed by the core service.
type AppModel struct {
	Turns        []Turn               // Newest-first conversation history
	Notices      []string             // Program messages (welcome, hints)
	Pending      *PendingConfirmation // Live confirmation question, if any
	Status       string               // Status bar text
	Err          string               // Dismissible inline error, empty when none
	Processing   bool                 // A query round-trip is in flight
	Speaking     bool                 // Synthesis playback in progress
	Listening    bool                 // Recognition cycle in progress
	Transcript   string               // Last raw transcript from the recognizer
	AutoSpeak    bool                 // Vocalize typed-query responses too
	Connectivity Connectivity         // Backend reachability
	Banner       string               // Connectivity banner text, empty when hidden
	Width        int                  // Terminal width
	Height       int                  // Terminal height
	Authed       bool                 // A bearer token is configured
}
