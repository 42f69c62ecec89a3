package events

// Scheduler runs a dispatch round in the background. The webhook
// dispatcher's Go method satisfies it.
type Scheduler interface {
	Go(event string, data map[string]any)
}

// Emitter is what CRM mutation sites call after a record changes. Every
// method returns immediately; delivery outcomes never reach the caller.
type Emitter struct {
	scheduler Scheduler
}

func NewEmitter(s Scheduler) *Emitter {
	return &Emitter{scheduler: s}
}

func (e *Emitter) Emit(event string, data map[string]any) {
	if e == nil || e.scheduler == nil {
		return
	}
	e.scheduler.Go(event, data)
}

func (e *Emitter) EmployeeCreated(emp Employee) {
	e.Emit(EmployeeCreated, EmployeeData(emp))
}

func (e *Emitter) EmployeeUpdated(emp Employee, changes map[string]any) {
	e.Emit(EmployeeUpdated, WithChanges(EmployeeData(emp), changes))
}

func (e *Emitter) EmployeeDeleted(emp Employee) {
	e.Emit(EmployeeDeleted, EmployeeData(emp))
}

func (e *Emitter) TaskCreated(t Task) {
	e.Emit(TaskCreated, TaskData(t))
}

func (e *Emitter) TaskUpdated(t Task, changes map[string]any) {
	e.Emit(TaskUpdated, WithChanges(TaskData(t), changes))
}

func (e *Emitter) TaskDeleted(t Task) {
	e.Emit(TaskDeleted, TaskData(t))
}

func (e *Emitter) EmailReceived(m Email) {
	e.Emit(EmailReceived, EmailData(m))
}

func (e *Emitter) EmailSent(m Email) {
	e.Emit(EmailSent, EmailData(m))
}
