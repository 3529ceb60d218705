package servicerecord_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/access/accesstest"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/servicerecord"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow/workflowtest"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
)

var start = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type env struct {
	store    *workflowtest.Memory
	members  *accesstest.Membership
	clock    *clock.Fixed
	svc      servicerecord.Service
	storeID  uuid.UUID
	owner    *access.Actor
	mechanic *access.Actor
	customer *access.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    workflowtest.New(),
		clock:    clock.NewFixed(start),
		storeID:  uuid.New(),
		owner:    &access.Actor{ID: uuid.New(), Role: access.RoleStoreOwner},
		mechanic: &access.Actor{ID: uuid.New(), Role: access.RoleStaff},
		customer: &access.Actor{ID: uuid.New(), Role: access.RoleCustomer},
	}
	members := accesstest.NewMembership()
	e.members = members
	members.AddStore(e.storeID, e.owner.ID)
	members.Grant(e.mechanic.ID, e.storeID, permission.ViewServices, permission.UpdateServices)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.svc = servicerecord.NewService(e.store, access.NewKernel(members), members, e.clock, logger)
	return e
}

func (e *env) seedRequest(status workflow.RequestStatus) workflow.ServiceRequest {
	sr := workflow.ServiceRequest{ID: uuid.New(), StoreID: e.storeID, CustomerID: e.customer.ID, BikeID: uuid.New(),
		Status: status, Priority: workflow.PriorityNormal}
	e.store.PutRequest(sr)
	return sr
}

func TestLifecycle_CreateToComplete(t *testing.T) {
	e := newEnv(t)
	sr := e.seedRequest(workflow.RequestApproved)
	ctx := context.Background()

	rec, err := e.svc.Create(ctx, e.owner, e.storeID, servicerecord.CreateRequest{
		ServiceRequestID: sr.ID.String(),
		TechnicianID:     e.mechanic.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.RecordPending, rec.Status)
	require.NotNil(t, rec.TechnicianID)
	assert.Equal(t, e.mechanic.ID, *rec.TechnicianID)

	stored, err := e.store.GetRequest(ctx, sr.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestInProgress, stored.Status)

	rec, err = e.svc.Start(ctx, e.mechanic, e.storeID, rec.ID, "")
	require.NoError(t, err)
	startedAt := rec.StartedAt
	require.NotNil(t, startedAt)

	e.clock.Advance(time.Hour)
	rec, err = e.svc.Hold(ctx, e.mechanic, e.storeID, rec.ID, "waiting for parts")
	require.NoError(t, err)
	assert.Equal(t, workflow.RecordOnHold, rec.Status)
	assert.Equal(t, "waiting for parts", rec.Notes)

	_, err = e.svc.Start(ctx, e.mechanic, e.storeID, rec.ID, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	rec, err = e.svc.Resume(ctx, e.mechanic, e.storeID, rec.ID, "")
	require.NoError(t, err)
	assert.Equal(t, *startedAt, *rec.StartedAt)

	rec, err = e.svc.Complete(ctx, e.mechanic, e.storeID, rec.ID, servicerecord.CompleteRequest{WorkPerformed: "Replaced chain"})
	require.NoError(t, err)
	assert.Equal(t, workflow.RecordCompleted, rec.Status)
	assert.Equal(t, "Replaced chain", rec.WorkPerformed)
	require.NotNil(t, rec.CompletedAt)

	stored, err = e.store.GetRequest(ctx, sr.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestCompleted, stored.Status)
}

func TestCreate_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	quoted := e.seedRequest(workflow.RequestQuoted)
	approved := e.seedRequest(workflow.RequestApproved)

	_, err := e.svc.Create(ctx, e.owner, e.storeID, servicerecord.CreateRequest{ServiceRequestID: quoted.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = e.svc.Create(ctx, e.owner, e.storeID, servicerecord.CreateRequest{
		ServiceRequestID: approved.ID.String(),
		TechnicianID:     uuid.NewString(),
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.svc.Create(ctx, e.customer, e.storeID, servicerecord.CreateRequest{ServiceRequestID: approved.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	stored, err := e.store.GetRequest(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestApproved, stored.Status)

	_, err = e.svc.Create(ctx, e.owner, e.storeID, servicerecord.CreateRequest{ServiceRequestID: approved.ID.String()})
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, e.owner, e.storeID, servicerecord.CreateRequest{ServiceRequestID: approved.ID.String()})
	assert.Error(t, err)
}

func TestComplete_RequiresInProgress(t *testing.T) {
	e := newEnv(t)
	sr := e.seedRequest(workflow.RequestApproved)
	rec, err := e.svc.Create(context.Background(), e.owner, e.storeID, servicerecord.CreateRequest{ServiceRequestID: sr.ID.String()})
	require.NoError(t, err)

	_, err = e.svc.Complete(context.Background(), e.mechanic, e.storeID, rec.ID, servicerecord.CompleteRequest{})
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	stored, err := e.store.GetRequest(context.Background(), sr.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestInProgress, stored.Status)
}

func TestCustomerVisibility(t *testing.T) {
	e := newEnv(t)
	sr := e.seedRequest(workflow.RequestApproved)
	rec, err := e.svc.Create(context.Background(), e.owner, e.storeID, servicerecord.CreateRequest{ServiceRequestID: sr.ID.String()})
	require.NoError(t, err)

	got, err := e.svc.Get(context.Background(), e.customer, e.storeID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = e.svc.Get(context.Background(), &access.Actor{ID: uuid.New(), Role: access.RoleCustomer}, e.storeID, rec.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	mine, err := e.svc.ListMine(context.Background(), e.customer, workflow.Filter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestInactiveStoreRefusesCustomers(t *testing.T) {
	e := newEnv(t)
	sr := e.seedRequest(workflow.RequestInProgress)
	rec := workflow.ServiceRecord{ID: uuid.New(), ServiceRequestID: sr.ID, StoreID: e.storeID, CustomerID: e.customer.ID,
		Status: workflow.RecordInProgress}
	e.store.PutRecord(rec)
	e.members.SetStoreActive(e.storeID, false)

	_, err := e.svc.Get(context.Background(), e.customer, e.storeID, rec.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
