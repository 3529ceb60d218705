// Package transition is the single entry point for "perform this action on
// this entity". It routes each action to the owning service and reports which
// actions a caller may attempt next.
package transition

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/invoice"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/quotation"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/servicerecord"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/servicerequest"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// Request names an action on one entity. Payload holds the action's fields.
type Request struct {
	EntityType workflow.EntityType `json:"-"`
	EntityID   uuid.UUID           `json:"-"`
	Action     workflow.Action     `json:"action" validate:"required"`
	Payload    json.RawMessage     `json:"payload,omitempty"`
}

// NextActions is what a caller may attempt on an entity in its current state.
type NextActions struct {
	EntityType workflow.EntityType `json:"entity_type"`
	EntityID   uuid.UUID           `json:"entity_id"`
	Status     string              `json:"status"`
	Actions    []workflow.Action   `json:"actions"`
}

// actionPermissions mirrors the permission checks of the owning services.
var actionPermissions = map[workflow.EntityType]map[workflow.Action][]permission.Permission{
	workflow.EntityServiceRequest: {
		workflow.ActionCreateQuotation: {permission.CreateQuotations},
		workflow.ActionCancel:          {permission.UpdateServices, permission.DeleteServices},
		workflow.ActionCreateRecord:    {permission.CreateServices, permission.UpdateServices},
	},
	workflow.EntityQuotation: {
		workflow.ActionSend:    {permission.CreateQuotations, permission.UpdateQuotations},
		workflow.ActionApprove: {permission.UpdateQuotations},
		workflow.ActionReject:  {permission.UpdateQuotations, permission.DeleteQuotations},
	},
	workflow.EntityServiceRecord: {
		workflow.ActionStart:         {permission.UpdateServices},
		workflow.ActionHold:          {permission.UpdateServices},
		workflow.ActionResume:        {permission.UpdateServices},
		workflow.ActionComplete:      {permission.UpdateServices},
		workflow.ActionCreateInvoice: {permission.CreateInvoices},
	},
	workflow.EntityInvoice: {
		workflow.ActionRecordPayment: {permission.UpdateInvoices},
		workflow.ActionCancel:        {permission.UpdateInvoices, permission.DeleteInvoices},
	},
}

// customerActions are the actions a customer may take on their own documents.
var customerActions = map[workflow.EntityType][]workflow.Action{
	workflow.EntityServiceRequest: {workflow.ActionCancel},
	workflow.EntityQuotation:      {workflow.ActionApprove, workflow.ActionReject},
}

// Dispatcher routes transition requests to the workflow services.
type Dispatcher struct {
	requests   servicerequest.Service
	quotations quotation.Service
	records    servicerecord.Service
	invoices   invoice.Service
	kernel     *access.Kernel
}

func NewDispatcher(requests servicerequest.Service, quotations quotation.Service, records servicerecord.Service,
	invoices invoice.Service, kernel *access.Kernel) *Dispatcher {
	return &Dispatcher{requests: requests, quotations: quotations, records: records, invoices: invoices, kernel: kernel}
}

// RequestTransition performs req and returns the updated (or created) entity.
// Actions that create a child document return the child.
func (d *Dispatcher) RequestTransition(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req Request) (any, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	if !req.EntityType.Valid() {
		return nil, apperror.Field("entity_type", "unknown entity type "+string(req.EntityType))
	}
	if _, ok := actionPermissions[req.EntityType][req.Action]; !ok {
		return nil, apperror.Field("action", "action "+string(req.Action)+" does not apply to "+string(req.EntityType))
	}

	switch req.EntityType {
	case workflow.EntityServiceRequest:
		return d.serviceRequest(ctx, actor, storeID, req)
	case workflow.EntityQuotation:
		return d.quotation(ctx, actor, storeID, req)
	case workflow.EntityServiceRecord:
		return d.serviceRecord(ctx, actor, storeID, req)
	default:
		return d.invoice(ctx, actor, storeID, req)
	}
}

func (d *Dispatcher) serviceRequest(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req Request) (any, error) {
	switch req.Action {
	case workflow.ActionCreateQuotation:
		var p quotation.CreateRequest
		if err := payload(req.Payload, &p, func() { p.ServiceRequestID = req.EntityID.String() }); err != nil {
			return nil, err
		}
		return d.quotations.Create(ctx, actor, storeID, p)
	case workflow.ActionCreateRecord:
		var p servicerecord.CreateRequest
		if err := payload(req.Payload, &p, func() { p.ServiceRequestID = req.EntityID.String() }); err != nil {
			return nil, err
		}
		return d.records.Create(ctx, actor, storeID, p)
	default:
		var p servicerequest.CancelRequest
		if err := payload(req.Payload, &p, nil); err != nil {
			return nil, err
		}
		return d.requests.Cancel(ctx, actor, storeID, req.EntityID, p.Reason)
	}
}

func (d *Dispatcher) quotation(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req Request) (any, error) {
	switch req.Action {
	case workflow.ActionSend:
		return d.quotations.Send(ctx, actor, storeID, req.EntityID)
	case workflow.ActionApprove:
		return d.quotations.Approve(ctx, actor, storeID, req.EntityID)
	default:
		var p quotation.RejectRequest
		if err := payload(req.Payload, &p, nil); err != nil {
			return nil, err
		}
		return d.quotations.Reject(ctx, actor, storeID, req.EntityID, p.Reason)
	}
}

func (d *Dispatcher) serviceRecord(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req Request) (any, error) {
	switch req.Action {
	case workflow.ActionComplete:
		var p servicerecord.CompleteRequest
		if err := payload(req.Payload, &p, nil); err != nil {
			return nil, err
		}
		return d.records.Complete(ctx, actor, storeID, req.EntityID, p)
	case workflow.ActionCreateInvoice:
		var p invoice.CreateRequest
		if err := payload(req.Payload, &p, func() { p.ServiceRecordID = req.EntityID.String() }); err != nil {
			return nil, err
		}
		return d.invoices.Create(ctx, actor, storeID, p)
	}

	var p servicerecord.ProgressRequest
	if err := payload(req.Payload, &p, nil); err != nil {
		return nil, err
	}
	switch req.Action {
	case workflow.ActionStart:
		return d.records.Start(ctx, actor, storeID, req.EntityID, p.Notes)
	case workflow.ActionHold:
		return d.records.Hold(ctx, actor, storeID, req.EntityID, p.Notes)
	default:
		return d.records.Resume(ctx, actor, storeID, req.EntityID, p.Notes)
	}
}

func (d *Dispatcher) invoice(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req Request) (any, error) {
	if req.Action == workflow.ActionCancel {
		return d.invoices.Cancel(ctx, actor, storeID, req.EntityID)
	}
	var p invoice.PaymentRequest
	if err := payload(req.Payload, &p, nil); err != nil {
		return nil, err
	}
	return d.invoices.RecordPayment(ctx, actor, storeID, req.EntityID, p)
}

// Actions loads the entity through its service, so scope and visibility rules
// apply, and lists the legal next actions the caller is allowed to take.
func (d *Dispatcher) Actions(ctx context.Context, actor *access.Actor, storeID uuid.UUID, entity workflow.EntityType, id uuid.UUID) (*NextActions, error) {
	if !entity.Valid() {
		return nil, apperror.Field("entity_type", "unknown entity type "+string(entity))
	}
	status, err := d.status(ctx, actor, storeID, entity, id)
	if err != nil {
		return nil, err
	}

	legal := workflow.Actions(entity, status)
	out := make([]workflow.Action, 0, len(legal))
	if actor.IsCustomer() {
		for _, a := range legal {
			if slices.Contains(customerActions[entity], a) {
				out = append(out, a)
			}
		}
	} else {
		held, err := d.kernel.EffectivePermissions(ctx, actor, storeID)
		if err != nil {
			return nil, apperror.Classify(err, "store")
		}
		for _, a := range legal {
			for _, p := range actionPermissions[entity][a] {
				if slices.Contains(held, p) {
					out = append(out, a)
					break
				}
			}
		}
	}
	return &NextActions{EntityType: entity, EntityID: id, Status: status, Actions: out}, nil
}

func (d *Dispatcher) status(ctx context.Context, actor *access.Actor, storeID uuid.UUID, entity workflow.EntityType, id uuid.UUID) (string, error) {
	switch entity {
	case workflow.EntityServiceRequest:
		sr, err := d.requests.Get(ctx, actor, storeID, id)
		if err != nil {
			return "", err
		}
		return string(sr.Status), nil
	case workflow.EntityQuotation:
		q, err := d.quotations.Get(ctx, actor, storeID, id)
		if err != nil {
			return "", err
		}
		return string(q.Status), nil
	case workflow.EntityServiceRecord:
		rec, err := d.records.Get(ctx, actor, storeID, id)
		if err != nil {
			return "", err
		}
		return string(rec.Status), nil
	default:
		inv, err := d.invoices.Get(ctx, actor, storeID, id)
		if err != nil {
			return "", err
		}
		return string(inv.PaymentStatus), nil
	}
}

// payload decodes raw into dst, lets fill set path-derived fields, then
// validates.
func payload(raw json.RawMessage, dst any, fill func()) error {
	if err := httpx.DecodePayload(raw, dst); err != nil {
		return err
	}
	if fill != nil {
		fill()
	}
	return httpx.Validate(dst)
}
