// Package queue defines message payloads exchanged over the message broker.
package queue

// AccountEventsQueue is the durable queue carrying AccountEvent messages.
const AccountEventsQueue = "account.events"

const (
    EventRoleChanged    = "role_changed"
    EventAccountDeleted = "account_deleted"
)

// AccountEvent is published after an administrative change to an account
// has been applied. It carries enough to audit the change without querying
// the identity provider.
type AccountEvent struct {
    Type  string `json:"type"`
    UID   string `json:"uid"`
    Email string `json:"email"`
    Role  string `json:"role,omitempty"`
    At    string `json:"at"`
}
