package workflow

// EntityType names a workflow entity at the transition boundary.
type EntityType string

const (
	EntityServiceRequest EntityType = "service_request"
	EntityQuotation      EntityType = "quotation"
	EntityServiceRecord  EntityType = "service_record"
	EntityInvoice        EntityType = "invoice"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityServiceRequest, EntityQuotation, EntityServiceRecord, EntityInvoice:
		return true
	}
	return false
}

// Action is a named operation a caller may request on an entity.
type Action string

const (
	ActionCreateQuotation Action = "create_quotation"
	ActionCancel          Action = "cancel"
	ActionCreateRecord    Action = "create_record"

	ActionSend    Action = "send"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"

	ActionStart         Action = "start"
	ActionHold          Action = "hold"
	ActionResume        Action = "resume"
	ActionComplete      Action = "complete"
	ActionCreateInvoice Action = "create_invoice"

	ActionRecordPayment Action = "record_payment"
)

var nextActions = map[EntityType]map[string][]Action{
	EntityServiceRequest: {
		string(RequestPending):    {ActionCreateQuotation, ActionCancel},
		string(RequestQuoted):     {ActionCreateQuotation, ActionCancel},
		string(RequestApproved):   {ActionCreateRecord, ActionCancel},
		string(RequestInProgress): {ActionCancel},
	},
	EntityQuotation: {
		string(QuotationDraft): {ActionSend, ActionReject},
		string(QuotationSent):  {ActionApprove, ActionReject},
	},
	EntityServiceRecord: {
		string(RecordPending):    {ActionStart, ActionHold},
		string(RecordInProgress): {ActionComplete, ActionHold},
		string(RecordOnHold):     {ActionResume},
		string(RecordCompleted):  {ActionCreateInvoice},
	},
	EntityInvoice: {
		string(PaymentPending): {ActionRecordPayment, ActionCancel},
		string(PaymentPartial): {ActionRecordPayment, ActionCancel},
		string(PaymentOverdue): {ActionRecordPayment, ActionCancel},
	},
}

// Actions lists the actions legal for an entity in status. Terminal and
// unknown statuses yield an empty list.
func Actions(entity EntityType, status string) []Action {
	src := nextActions[entity][status]
	out := make([]Action, len(src))
	copy(out, src)
	return out
}

// Allows reports whether action is legal for an entity in status.
func Allows(entity EntityType, status string, action Action) bool {
	for _, a := range nextActions[entity][status] {
		if a == action {
			return true
		}
	}
	return false
}
