// Package events defines the webhook event vocabulary and the payload
// projections emitted when CRM records change.
//
// The typed Emitter methods (TaskCreated, EmployeeUpdated, ...) are meant for
// services embedding this module next to their own record handlers. The HTTP
// ingestion endpoint only uses Emit, since remote callers send the payload
// already shaped.
package events

const (
	EmployeeCreated = "EMPLOYEE_CREATED"
	EmployeeUpdated = "EMPLOYEE_UPDATED"
	EmployeeDeleted = "EMPLOYEE_DELETED"
	TaskCreated     = "TASK_CREATED"
	TaskUpdated     = "TASK_UPDATED"
	TaskDeleted     = "TASK_DELETED"
	EmailReceived   = "EMAIL_RECEIVED"
	EmailSent       = "EMAIL_SENT"

	// WebhookTest is only sent by the admin "test delivery" endpoint.
	WebhookTest = "WEBHOOK_TEST"
)

var all = []string{
	EmployeeCreated, EmployeeUpdated, EmployeeDeleted,
	TaskCreated, TaskUpdated, TaskDeleted,
	EmailReceived, EmailSent,
	WebhookTest,
}

// All returns the event names a webhook may subscribe to.
func All() []string {
	out := make([]string, len(all))
	copy(out, all)
	return out
}

func IsKnown(name string) bool {
	for _, e := range all {
		if e == name {
			return true
		}
	}
	return false
}
