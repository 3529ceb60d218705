package servicerecord

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/metrics"
)

// Service defines service record operations.
type Service interface {
	// Create opens a pending record and moves the approved request to in_progress.
	Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.ServiceRecord, error)
	// Get returns a record visible to the actor.
	Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.ServiceRecord, error)
	// List returns the store's records.
	List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.ServiceRecord, error)
	// ListMine returns the calling customer's records.
	ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.ServiceRecord, error)
	// Start moves a pending record to in_progress.
	Start(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, notes string) (*workflow.ServiceRecord, error)
	// Hold pauses work on a record.
	Hold(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, notes string) (*workflow.ServiceRecord, error)
	// Resume continues work on a held record.
	Resume(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, notes string) (*workflow.ServiceRecord, error)
	// Complete finishes the record and its service request together.
	Complete(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, req CompleteRequest) (*workflow.ServiceRecord, error)
}

type service struct {
	store      workflow.Store
	kernel     *access.Kernel
	membership access.Membership
	clock      clock.Clock
	logger     *slog.Logger
}

// NewService creates a new service record service.
func NewService(store workflow.Store, kernel *access.Kernel, membership access.Membership, clk clock.Clock, logger *slog.Logger) Service {
	return &service{store: store, kernel: kernel, membership: membership, clock: clk, logger: logger}
}

func (s *service) Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.ServiceRecord, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.CreateServices, permission.UpdateServices); err != nil {
		return nil, err
	}
	requestID, err := uuid.Parse(req.ServiceRequestID)
	if err != nil {
		return nil, apperror.Field("service_request_id", "not a valid id")
	}
	var technician *uuid.UUID
	if req.TechnicianID != "" {
		id, err := uuid.Parse(req.TechnicianID)
		if err != nil {
			return nil, apperror.Field("technician_id", "not a valid id")
		}
		if err := s.requireWorksAt(ctx, id, storeID); err != nil {
			return nil, err
		}
		technician = &id
	}

	var rec workflow.ServiceRecord
	err = s.store.InTx(ctx, func(tx workflow.Tx) error {
		sr, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if sr.StoreID != storeID {
			return apperror.NotFound("service request")
		}
		next, created, err := workflow.StartRecord(*sr, workflow.ServiceRecord{
			ID:           uuid.New(),
			TechnicianID: technician,
			Notes:        req.Notes,
		}, s.clock.Now())
		if err != nil {
			return err
		}
		rec = created
		if err := tx.SaveRequest(ctx, &next, sr.Status); err != nil {
			return err
		}
		return tx.InsertRecord(ctx, &rec)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRecord), string(rec.Status)).Inc()
	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRequest), string(workflow.RequestInProgress)).Inc()
	return &rec, nil
}

func (s *service) Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.ServiceRecord, error) {
	if err := s.kernel.Preauthorize(ctx, actor, storeID, permission.ViewServices); err != nil {
		return nil, err
	}
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkScope(actor, storeID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.ServiceRecord, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.ViewServices); err != nil {
		return nil, err
	}
	f.StoreID = storeID
	f.CustomerID = uuid.Nil
	return s.store.ListRecords(ctx, f)
}

func (s *service) ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.ServiceRecord, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	if !actor.IsCustomer() {
		return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "only customers have their own service records")
	}
	f.CustomerID = actor.ID
	return s.store.ListRecords(ctx, f)
}

func (s *service) Start(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, notes string) (*workflow.ServiceRecord, error) {
	return s.move(ctx, actor, storeID, id, []workflow.RecordStatus{workflow.RecordPending}, workflow.RecordInProgress, notes)
}

func (s *service) Hold(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, notes string) (*workflow.ServiceRecord, error) {
	return s.move(ctx, actor, storeID, id, []workflow.RecordStatus{workflow.RecordPending, workflow.RecordInProgress}, workflow.RecordOnHold, notes)
}

func (s *service) Resume(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, notes string) (*workflow.ServiceRecord, error) {
	return s.move(ctx, actor, storeID, id, []workflow.RecordStatus{workflow.RecordOnHold}, workflow.RecordInProgress, notes)
}

// move applies from -> next; start and resume share a target so the source
// status is checked explicitly.
func (s *service) move(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, from []workflow.RecordStatus, next workflow.RecordStatus, notes string) (*workflow.ServiceRecord, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.UpdateServices); err != nil {
		return nil, err
	}
	var moved workflow.ServiceRecord
	err := s.store.InTx(ctx, func(tx workflow.Tx) error {
		rec, err := tx.LockRecord(ctx, id)
		if err != nil {
			return err
		}
		if rec.StoreID != storeID {
			return apperror.NotFound("service record")
		}
		if !slices.Contains(from, rec.Status) {
			return apperror.InvalidTransition("cannot move service record from %s to %s", rec.Status, next)
		}
		moved, err = workflow.ApplyRecord(*rec, next, s.clock.Now())
		if err != nil {
			return err
		}
		if notes != "" {
			moved.Notes = notes
		}
		return tx.SaveRecord(ctx, &moved, rec.Status)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRecord), string(moved.Status)).Inc()
	return &moved, nil
}

func (s *service) Complete(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, req CompleteRequest) (*workflow.ServiceRecord, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.UpdateServices); err != nil {
		return nil, err
	}
	current, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.StoreID != storeID {
		return nil, apperror.NotFound("service record")
	}

	var done workflow.ServiceRecord
	err = s.store.InTx(ctx, func(tx workflow.Tx) error {
		sr, err := tx.LockRequest(ctx, current.ServiceRequestID)
		if err != nil {
			return err
		}
		rec, err := tx.LockRecord(ctx, id)
		if err != nil {
			return err
		}
		var finished workflow.ServiceRequest
		done, finished, err = workflow.CompleteRecord(*rec, *sr, req.WorkPerformed, s.clock.Now())
		if err != nil {
			return err
		}
		if req.Notes != "" {
			done.Notes = req.Notes
		}
		if err := tx.SaveRecord(ctx, &done, rec.Status); err != nil {
			return err
		}
		return tx.SaveRequest(ctx, &finished, sr.Status)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRecord), string(done.Status)).Inc()
	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRequest), string(workflow.RequestCompleted)).Inc()
	s.logger.InfoContext(ctx, "service record completed", slog.String("service_record_id", done.ID.String()))
	return &done, nil
}

// requireWorksAt accepts the store owner or a user with an active grant.
func (s *service) requireWorksAt(ctx context.Context, userID, storeID uuid.UUID) error {
	st, err := s.membership.StoreState(ctx, storeID)
	if err != nil {
		return apperror.Classify(err, "store")
	}
	if st != nil && st.OwnerID == userID {
		return nil
	}
	grant, err := s.membership.FindActiveGrant(ctx, userID, storeID)
	if err != nil {
		return apperror.Classify(err, "staff grant")
	}
	if grant == nil {
		return apperror.Field("technician_id", "technician does not work at this store")
	}
	return nil
}

func checkScope(actor *access.Actor, storeID uuid.UUID, rec *workflow.ServiceRecord) error {
	if actor.IsCustomer() {
		if err := access.RequireOwnership(actor, rec.CustomerID); err != nil {
			return err
		}
	}
	if rec.StoreID != storeID {
		return apperror.NotFound("service record")
	}
	return nil
}
