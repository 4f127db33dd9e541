package models

// 业务信号, 均在事务提交之后发出
const (
	SigRecordChanged      = "record.changed"
	SigUserCreate         = "user.create"
	SigCrimeReported      = "crime.reported"
	SigCrimeAssigned      = "crime.assigned"
	SigCrimeStatusChanged = "crime.status_changed"
	SigIncidentCreated    = "incident.created"
	SigIncidentAssigned   = "incident.assigned"
	SigAccountRequested   = "account.requested"
	SigAccountApproved    = "account.approved"
	SigFeedbackSubmitted  = "feedback.submitted"
	SigFeedbackResponded  = "feedback.responded"
	SigAssetAssigned      = "asset.assigned"
	SigScheduleSaved      = "schedule.saved"
)

// RecordEvent SigRecordChanged 的载荷
type RecordEvent struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	ID       uint   `json:"id"`
	Actor    string `json:"actor,omitempty"`
	Record   any    `json:"-"`
}
