package servicerequest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/bike"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/metrics"
)

// Service defines service request operations.
type Service interface {
	// Create opens a pending request for the customer's bike.
	Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.ServiceRequest, error)
	// Get returns a request visible to the actor.
	Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.ServiceRequest, error)
	// List returns the store's requests.
	List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.ServiceRequest, error)
	// ListMine returns the calling customer's requests.
	ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.ServiceRequest, error)
	// Cancel cancels the request and rejects its active quotations in one unit.
	Cancel(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, reason string) (*workflow.ServiceRequest, error)
}

// BikeLookup loads bikes for ownership checks.
type BikeLookup interface {
	GetBikeByID(ctx context.Context, id uuid.UUID) (*bike.Bike, error)
}

type service struct {
	store  workflow.Store
	kernel *access.Kernel
	bikes  BikeLookup
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a new service request service.
func NewService(store workflow.Store, kernel *access.Kernel, bikes BikeLookup, clk clock.Clock, logger *slog.Logger) Service {
	return &service{store: store, kernel: kernel, bikes: bikes, clock: clk, logger: logger}
}

func (s *service) Create(ctx context.Context, actor *access.Actor, storeID uuid.UUID, req CreateRequest) (*workflow.ServiceRequest, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}

	var customerID uuid.UUID
	if actor.IsCustomer() {
		customerID = actor.ID
		if err := s.kernel.RequireOpenStore(ctx, storeID); err != nil {
			return nil, err
		}
	} else {
		if err := s.kernel.Require(ctx, actor, storeID, permission.CreateServices); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, apperror.Field("customer_id", "required when staff open a request")
		}
		customerID = id
	}

	bikeID, err := uuid.Parse(req.BikeID)
	if err != nil {
		return nil, apperror.Field("bike_id", "not a valid id")
	}
	b, err := s.bikes.GetBikeByID(ctx, bikeID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Field("bike_id", "bike does not exist")
		}
		return nil, err
	}
	if b.CustomerID != customerID {
		if actor.IsCustomer() {
			return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "bike belongs to another customer")
		}
		return nil, apperror.Field("bike_id", "bike does not belong to the customer")
	}

	priority := workflow.Priority(req.Priority)
	if priority == "" {
		priority = workflow.PriorityNormal
	}

	now := s.clock.Now()
	sr := &workflow.ServiceRequest{
		ID:            uuid.New(),
		StoreID:       storeID,
		CustomerID:    customerID,
		BikeID:        bikeID,
		Status:        workflow.RequestPending,
		Priority:      priority,
		Description:   req.Description,
		PreferredDate: req.PreferredDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.store.InTx(ctx, func(tx workflow.Tx) error {
		return tx.InsertRequest(ctx, sr)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRequest), string(sr.Status)).Inc()
	return sr, nil
}

func (s *service) Get(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID) (*workflow.ServiceRequest, error) {
	if err := s.kernel.Preauthorize(ctx, actor, storeID, permission.ViewServices); err != nil {
		return nil, err
	}
	sr, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkScope(actor, storeID, sr); err != nil {
		return nil, err
	}
	return sr, nil
}

func (s *service) List(ctx context.Context, actor *access.Actor, storeID uuid.UUID, f workflow.Filter) ([]*workflow.ServiceRequest, error) {
	if err := s.kernel.Require(ctx, actor, storeID, permission.ViewServices); err != nil {
		return nil, err
	}
	f.StoreID = storeID
	f.CustomerID = uuid.Nil
	return s.store.ListRequests(ctx, f)
}

func (s *service) ListMine(ctx context.Context, actor *access.Actor, f workflow.Filter) ([]*workflow.ServiceRequest, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	if !actor.IsCustomer() {
		return nil, apperror.Unauthorized(string(access.ReasonNoAccess), "only customers have their own service requests")
	}
	f.CustomerID = actor.ID
	return s.store.ListRequests(ctx, f)
}

func (s *service) Cancel(ctx context.Context, actor *access.Actor, storeID, id uuid.UUID, reason string) (*workflow.ServiceRequest, error) {
	if err := s.kernel.Preauthorize(ctx, actor, storeID, permission.UpdateServices, permission.DeleteServices); err != nil {
		return nil, err
	}

	var (
		cancelled workflow.ServiceRequest
		rejected  []workflow.Quotation
	)
	err := s.store.InTx(ctx, func(tx workflow.Tx) error {
		sr, err := tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := checkScope(actor, storeID, sr); err != nil {
			return err
		}
		active, err := tx.ActiveQuotations(ctx, sr.ID)
		if err != nil {
			return err
		}
		prior := make(map[uuid.UUID]workflow.QuotationStatus, len(active))
		snapshots := make([]workflow.Quotation, len(active))
		for i, q := range active {
			prior[q.ID] = q.Status
			snapshots[i] = *q
		}

		cancelled, rejected, err = workflow.CancelRequest(*sr, snapshots, reason, s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.SaveRequest(ctx, &cancelled, sr.Status); err != nil {
			return err
		}
		for i := range rejected {
			if err := tx.SaveQuotation(ctx, &rejected[i], prior[rejected[i].ID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(workflow.EntityServiceRequest), string(cancelled.Status)).Inc()
	for range rejected {
		metrics.Transitions.WithLabelValues(string(workflow.EntityQuotation), string(workflow.QuotationRejected)).Inc()
	}
	s.logger.InfoContext(ctx, "service request cancelled",
		slog.String("service_request_id", cancelled.ID.String()),
		slog.Int("quotations_rejected", len(rejected)))
	return &cancelled, nil
}

// checkScope hides requests of other stores and enforces customer ownership.
func checkScope(actor *access.Actor, storeID uuid.UUID, sr *workflow.ServiceRequest) error {
	if actor.IsCustomer() {
		if err := access.RequireOwnership(actor, sr.CustomerID); err != nil {
			return err
		}
	}
	if sr.StoreID != storeID {
		return apperror.NotFound("service request")
	}
	return nil
}
