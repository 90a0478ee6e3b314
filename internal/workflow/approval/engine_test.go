package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"contracthub/internal/common"
	"contracthub/internal/contract"
	"contracthub/internal/directory"
	"contracthub/internal/notification"
	"contracthub/internal/workflow"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	var models []any
	models = append(models, directory.Models()...)
	models = append(models, contract.Models()...)
	models = append(models, workflow.Models()...)
	models = append(models, Models()...)
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

type eventRecorder struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *eventRecorder) Notify(_ context.Context, evt notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) all() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) ofType(typ notification.EventType) []notification.Event {
	var out []notification.Event
	for _, evt := range r.all() {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	engine    *Engine
	contracts *contract.Store
	templates *workflow.TemplateService
	events    *eventRecorder
	users     map[string]directory.User
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	db := openTestDB(t)
	f := &fixture{
		db:        db,
		contracts: contract.NewStore(db),
		templates: workflow.NewTemplateService(db),
		events:    &eventRecorder{},
		users:     map[string]directory.User{},
	}

	base := time.Now().Add(-time.Hour)
	mk := func(name, role string, dept *string, manager string, offset int) {
		u := directory.User{
			ID:         uuid.NewString(),
			Name:       name,
			Email:      name + "@example.com",
			Department: dept,
			SystemRole: role,
			ManagerID:  common.StringPtr(f.users[manager].ID),
			Active:     true,
		}
		u.CreatedAt = base.Add(time.Duration(offset) * time.Second)
		require.NoError(t, db.Create(&u).Error)
		f.users[name] = u
	}
	mk("boss", directory.RoleManager, common.StringPtr("Sales"), "", 1)
	mk("owner", directory.RoleUser, common.StringPtr("Sales"), "boss", 2)
	mk("legal1", directory.RoleUser, common.StringPtr("Legal"), "", 3)
	mk("legal2", directory.RoleUser, common.StringPtr("Legal"), "", 4)
	mk("admin", directory.RoleAdmin, nil, "", 5)
	mk("cfo", "FINANCE", common.StringPtr("Finance"), "", 6)
	for i := 1; i <= 5; i++ {
		mk(fmt.Sprintf("reviewer%d", i), directory.RoleUser, nil, "", 6+i)
	}

	opts = append([]EngineOption{WithNotifier(f.events)}, opts...)
	f.engine = NewEngine(db, directory.NewGormDirectory(db), opts...)
	return f
}

func (f *fixture) id(name string) string {
	return f.users[name].ID
}

func (f *fixture) ids(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, f.id(n))
	}
	return out
}

func (f *fixture) newContract(t *testing.T, fields map[string]any) *contract.Contract {
	t.Helper()
	c := &contract.Contract{
		Title:       "供货合同",
		CreatedByID: f.id("owner"),
		Fields:      datatypes.JSONMap(fields),
	}
	require.NoError(t, f.contracts.Create(context.Background(), c))
	return c
}

func (f *fixture) createTemplate(t *testing.T, steps ...workflow.WorkflowStep) string {
	t.Helper()
	for i := range steps {
		steps[i].StepOrder = i + 1
	}
	tpl := &workflow.WorkflowTemplate{Name: "tpl-" + uuid.NewString(), Steps: steps}
	require.NoError(t, f.templates.CreateTemplate(context.Background(), tpl))
	return tpl.ID
}

func (f *fixture) reload(t *testing.T, id string) *contract.Contract {
	t.Helper()
	c, err := f.contracts.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) approvalOf(t *testing.T, records []ContractApproval, name string) ContractApproval {
	t.Helper()
	for _, r := range records {
		if r.ApproverID == f.id(name) {
			return r
		}
	}
	t.Fatalf("no approval record for %s", name)
	return ContractApproval{}
}

func (f *fixture) decide(t *testing.T, records []ContractApproval, name string, d Decision) *DecisionResult {
	t.Helper()
	record := f.approvalOf(t, records, name)
	res, err := f.engine.RecordDecision(context.Background(), DecisionInput{
		ApprovalID: record.ID,
		ActorID:    f.id(name),
		Decision:   d,
	})
	require.NoError(t, err)
	return res
}

func step(kind workflow.ApproverType, value string, conds ...workflow.ApproverCondition) workflow.WorkflowStep {
	for i := range conds {
		conds[i].Position = i + 1
	}
	return workflow.WorkflowStep{ApproverType: kind, ApproverValue: value, Conditions: conds}
}

func cond(t *testing.T, field, op string, value any) workflow.ApproverCondition {
	t.Helper()
	c := workflow.ApproverCondition{Field: field, Operator: op}
	require.NoError(t, c.SetValue(value))
	return c
}

func TestInitiateDeduplicatesOverlappingSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tplID := f.createTemplate(t,
		step(workflow.ApproverGroup, "department:Legal"),
		step(workflow.ApproverUser, f.id("legal1")),
		step(workflow.ApproverRole, "admin"),
	)
	c := f.newContract(t, map[string]any{"value": 10})

	res, err := f.engine.Initiate(ctx, InitiateInput{
		ContractID:        c.ID,
		ActorID:           f.id("owner"),
		TemplateID:        tplID,
		ManualApproverIDs: f.ids("legal2", "cfo"),
	})
	require.NoError(t, err)

	require.Len(t, res.Approvals, 4)
	var approvers []string
	for i, r := range res.Approvals {
		require.Equal(t, StatusPending, r.Status)
		require.Equal(t, i+1, r.Sequence)
		require.Equal(t, 1, r.Round)
		approvers = append(approvers, r.ApproverID)
	}
	require.Equal(t, f.ids("legal1", "legal2", "admin", "cfo"), approvers)
	require.False(t, f.approvalOf(t, res.Approvals, "legal1").Manual)
	require.True(t, f.approvalOf(t, res.Approvals, "cfo").Manual)

	stored, err := f.engine.ListApprovals(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, stored, 4)

	got := f.reload(t, c.ID)
	require.Equal(t, contract.StatusUnderReview, got.Status)
	require.Equal(t, f.id("legal1"), common.StringValue(got.AssignedToID))

	initiated := f.events.ofType(notification.EventApprovalInitiated)
	require.Len(t, initiated, 1)
	require.ElementsMatch(t, approvers, initiated[0].Recipients)
	require.Len(t, f.events.ofType(notification.EventContractStatusChanged), 1)
}

func TestInitiateExcludesGatedStep(t *testing.T) {
	f := newFixture(t)
	tplID := f.createTemplate(t,
		step(workflow.ApproverUser, f.id("cfo"), cond(t, "value", ">", 1000000)),
		step(workflow.ApproverUser, f.id("legal1")),
	)
	c := f.newContract(t, map[string]any{"value": 500000})

	res, err := f.engine.Initiate(context.Background(), InitiateInput{
		ContractID: c.ID,
		ActorID:    f.id("owner"),
		TemplateID: tplID,
	})
	require.NoError(t, err)
	require.Len(t, res.Approvals, 1)
	require.Equal(t, f.id("legal1"), res.Approvals[0].ApproverID)

	require.Len(t, res.Steps, 2)
	require.False(t, res.Steps[0].Included)
	require.Equal(t, "[value > 1000000]", res.Steps[0].Conditions)
	require.True(t, res.Steps[1].Included)
}

func TestInitiateFailsWithoutApprovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tplID := f.createTemplate(t,
		step(workflow.ApproverUser, f.id("cfo"), cond(t, "value", ">", 1000000)),
		step(workflow.ApproverGroup, "Legal", cond(t, "region", "equals", "EU")),
	)
	c := f.newContract(t, map[string]any{"value": 500000})

	_, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ActorID: f.id("owner"), TemplateID: tplID})
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrBusinessLogic))

	var count int64
	require.NoError(t, f.db.Model(&ContractApproval{}).Count(&count).Error)
	require.Zero(t, count)
	require.Equal(t, contract.StatusDraft, f.reload(t, c.ID).Status)
	require.Empty(t, f.events.all())
}

func TestInitiateDynamicManager(t *testing.T) {
	f := newFixture(t)
	tplID := f.createTemplate(t, step(workflow.ApproverDynamic, workflow.DynamicInitiatorManager))
	c := f.newContract(t, nil)

	res, err := f.engine.Initiate(context.Background(), InitiateInput{
		ContractID: c.ID,
		ActorID:    f.id("admin"),
		TemplateID: tplID,
	})
	require.NoError(t, err)
	require.Len(t, res.Approvals, 1)
	require.Equal(t, f.id("boss"), res.Approvals[0].ApproverID)
}

func TestInitiateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)

	_, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, TemplateID: uuid.NewString()})
	require.True(t, errors.Is(err, common.ErrNotFound))

	_, err = f.engine.Initiate(ctx, InitiateInput{ContractID: uuid.NewString(), ManualApproverIDs: f.ids("legal1")})
	require.True(t, errors.Is(err, common.ErrNotFound))

	_, err = f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("legal1"), Variant: "express"})
	require.True(t, errors.Is(err, common.ErrValidation))

	require.Empty(t, f.events.all())
}

func TestRejectIsOrderIndependent(t *testing.T) {
	orders := [][]string{
		{"reviewer1", "reviewer2", "reviewer3"},
		{"reviewer2", "reviewer3", "reviewer1"},
		{"reviewer3", "reviewer1", "reviewer2"},
		{"reviewer2", "reviewer1", "reviewer3"},
	}
	decisions := map[string]Decision{
		"reviewer1": DecisionApprove,
		"reviewer2": DecisionReject,
		"reviewer3": DecisionApprove,
	}

	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			f := newFixture(t)
			c := f.newContract(t, nil)
			res, err := f.engine.Initiate(context.Background(), InitiateInput{
				ContractID:        c.ID,
				ActorID:           f.id("owner"),
				ManualApproverIDs: f.ids("reviewer1", "reviewer2", "reviewer3"),
			})
			require.NoError(t, err)

			for _, name := range order {
				f.decide(t, res.Approvals, name, decisions[name])
			}

			got := f.reload(t, c.ID)
			require.Equal(t, contract.StatusRejected, got.Status)
			require.Equal(t, f.id("owner"), common.StringValue(got.AssignedToID))
		})
	}
}

func TestApprovedIsStableUnderRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)
	res, err := f.engine.Initiate(ctx, InitiateInput{
		ContractID:        c.ID,
		ActorID:           f.id("owner"),
		ManualApproverIDs: f.ids("reviewer1", "reviewer2"),
	})
	require.NoError(t, err)

	pending, err := f.engine.CountPending(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, pending)

	first := f.decide(t, res.Approvals, "reviewer1", DecisionApprove)
	require.True(t, first.Changed)
	require.Equal(t, contract.StatusUnderReview, first.Contract.Status)
	require.Equal(t, f.id("reviewer2"), common.StringValue(first.Contract.AssignedToID))

	last := f.decide(t, res.Approvals, "reviewer2", DecisionApprove)
	require.Equal(t, contract.StatusApproved, last.Contract.Status)
	require.Equal(t, f.id("owner"), common.StringValue(last.Contract.AssignedToID))
	require.NotNil(t, last.Approval.ApprovedAt)

	history, err := f.contracts.History(ctx, c.ID)
	require.NoError(t, err)
	events := len(f.events.all())

	for range 3 {
		out, err := f.engine.Recompute(ctx, c.ID, f.id("admin"))
		require.NoError(t, err)
		require.False(t, out.Changed)
		require.Equal(t, contract.StatusApproved, out.Contract.Status)
	}

	after, err := f.contracts.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, after, len(history))
	require.Len(t, f.events.all(), events)

	pending, err = f.engine.CountPending(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestSignoffVariantEndsInSigning(t *testing.T) {
	f := newFixture(t)
	c := f.newContract(t, nil)
	res, err := f.engine.Initiate(context.Background(), InitiateInput{
		ContractID:        c.ID,
		ActorID:           f.id("owner"),
		ManualApproverIDs: f.ids("reviewer1"),
		Variant:           "signoff",
	})
	require.NoError(t, err)
	require.Equal(t, string(VariantSignoff), res.Contract.ApprovalVariant)

	out := f.decide(t, res.Approvals, "reviewer1", DecisionApprove)
	require.Equal(t, contract.StatusSigning, out.Contract.Status)
}

func TestDefaultVariantOption(t *testing.T) {
	f := newFixture(t, WithDefaultVariant(VariantSignoff))
	c := f.newContract(t, nil)
	res, err := f.engine.Initiate(context.Background(), InitiateInput{
		ContractID:        c.ID,
		ManualApproverIDs: f.ids("reviewer1"),
	})
	require.NoError(t, err)

	out := f.decide(t, res.Approvals, "reviewer1", DecisionApprove)
	require.Equal(t, contract.StatusSigning, out.Contract.Status)
}

func TestReinitiatePreservesDecidedRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)

	first, err := f.engine.Initiate(ctx, InitiateInput{
		ContractID:        c.ID,
		ActorID:           f.id("owner"),
		ManualApproverIDs: f.ids("reviewer1", "reviewer2", "reviewer3"),
	})
	require.NoError(t, err)
	approved := f.approvalOf(t, first.Approvals, "reviewer1")
	f.decide(t, first.Approvals, "reviewer1", DecisionApprove)

	second, err := f.engine.Initiate(ctx, InitiateInput{
		ContractID:        c.ID,
		ActorID:           f.id("owner"),
		ManualApproverIDs: f.ids("reviewer4", "reviewer5"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, second.Contract.ApprovalRound)

	records, err := f.engine.ListApprovals(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)

	kept := records[0]
	require.Equal(t, approved.ID, kept.ID)
	require.Equal(t, StatusApproved, kept.Status)
	require.Equal(t, 1, kept.Round)
	for _, r := range records[1:] {
		require.Equal(t, StatusPending, r.Status)
		require.Equal(t, 2, r.Round)
		require.Greater(t, r.Sequence, kept.Sequence)
	}
	require.Equal(t, f.ids("reviewer4", "reviewer5"), []string{records[1].ApproverID, records[2].ApproverID})

	got := f.reload(t, c.ID)
	require.Equal(t, contract.StatusUnderReview, got.Status)
	require.Equal(t, f.id("reviewer4"), common.StringValue(got.AssignedToID))
	require.Len(t, f.events.ofType(notification.EventContractAssigned), 2)
}

func TestReinitiateAfterRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)

	first, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer1")})
	require.NoError(t, err)
	f.decide(t, first.Approvals, "reviewer1", DecisionReject)
	require.Equal(t, contract.StatusRejected, f.reload(t, c.ID).Status)

	second, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer2")})
	require.NoError(t, err)
	out := f.decide(t, second.Approvals, "reviewer2", DecisionApprove)
	require.Equal(t, contract.StatusApproved, out.Contract.Status)

	records, err := f.engine.ListApprovals(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, StatusRejected, records[0].Status)
}

func TestRecordDecisionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)
	res, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer1", "reviewer2")})
	require.NoError(t, err)
	record := f.approvalOf(t, res.Approvals, "reviewer1")

	_, err = f.engine.RecordDecision(ctx, DecisionInput{ApprovalID: record.ID, ActorID: f.id("reviewer2"), Decision: DecisionApprove})
	require.True(t, errors.Is(err, common.ErrAuthorization))
	require.True(t, errors.Is(err, ErrNotApprover))

	_, err = f.engine.RecordDecision(ctx, DecisionInput{ApprovalID: record.ID, ActorID: f.id("reviewer1"), Decision: "MAYBE"})
	require.True(t, errors.Is(err, common.ErrValidation))

	_, err = f.engine.RecordDecision(ctx, DecisionInput{ApprovalID: uuid.NewString(), ActorID: f.id("reviewer1"), Decision: DecisionApprove})
	require.True(t, errors.Is(err, common.ErrNotFound))

	var unchanged ContractApproval
	require.NoError(t, f.db.First(&unchanged, "id = ?", record.ID).Error)
	require.Equal(t, StatusPending, unchanged.Status)
	require.Nil(t, unchanged.ApprovedAt)

	f.decide(t, res.Approvals, "reviewer1", DecisionApprove)
	_, err = f.engine.RecordDecision(ctx, DecisionInput{ApprovalID: record.ID, ActorID: f.id("reviewer1"), Decision: DecisionReject})
	require.True(t, errors.Is(err, ErrNotDecidable))
}

func TestRevisionRequestedCanBeDecidedAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)
	res, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer1")})
	require.NoError(t, err)

	out, err := f.engine.RecordDecision(ctx, DecisionInput{
		ApprovalID: res.Approvals[0].ID,
		ActorID:    f.id("reviewer1"),
		Decision:   DecisionRequestRevision,
		Comment:    "请补充付款条款",
	})
	require.NoError(t, err)
	require.Equal(t, contract.StatusRevisionRequested, out.Contract.Status)
	require.Equal(t, f.id("owner"), common.StringValue(out.Contract.AssignedToID))
	require.Equal(t, "请补充付款条款", out.Approval.Comment)

	out = f.decide(t, res.Approvals, "reviewer1", DecisionApprove)
	require.Equal(t, contract.StatusApproved, out.Contract.Status)
}

func TestConcurrentDecisionsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)
	names := []string{"reviewer1", "reviewer2", "reviewer3", "reviewer4", "reviewer5"}
	res, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids(names...)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, len(names))
	for _, name := range names {
		record := f.approvalOf(t, res.Approvals, name)
		actor := f.id(name)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RecordDecision(ctx, DecisionInput{ApprovalID: record.ID, ActorID: actor, Decision: DecisionApprove})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, contract.StatusApproved, f.reload(t, c.ID).Status)

	history, err := f.contracts.History(ctx, c.ID)
	require.NoError(t, err)
	var toApproved int
	for _, h := range history {
		if h.ToStatus == contract.StatusApproved {
			toApproved++
		}
	}
	require.Equal(t, 1, toApproved)
}

func TestRecomputeLeavesSigningStagesAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)
	res, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer1"), Variant: "signoff"})
	require.NoError(t, err)
	f.decide(t, res.Approvals, "reviewer1", DecisionApprove)

	got := f.reload(t, c.ID)
	_, err = f.contracts.Apply(ctx, got, contract.Transition{To: contract.StatusActive, AssignedTo: got.AssignedToID})
	require.NoError(t, err)

	out, err := f.engine.Recompute(ctx, c.ID, "")
	require.NoError(t, err)
	require.False(t, out.Changed)
	require.Equal(t, contract.StatusActive, out.Contract.Status)
}

func TestRecomputeKeepsSignerAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)
	res, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer1"), Variant: "signoff"})
	require.NoError(t, err)
	f.decide(t, res.Approvals, "reviewer1", DecisionApprove)

	// 签署流程把合同交给第一位签署人
	got := f.reload(t, c.ID)
	require.Equal(t, contract.StatusSigning, got.Status)
	signer := f.id("legal1")
	_, err = f.contracts.Apply(ctx, got, contract.Transition{To: contract.StatusSigning, AssignedTo: &signer})
	require.NoError(t, err)

	history, err := f.contracts.History(ctx, c.ID)
	require.NoError(t, err)
	events := len(f.events.all())

	out, err := f.engine.Recompute(ctx, c.ID, f.id("admin"))
	require.NoError(t, err)
	require.False(t, out.Changed)
	require.Equal(t, contract.StatusSigning, out.Contract.Status)
	require.Equal(t, signer, common.StringValue(out.Contract.AssignedToID))

	after, err := f.contracts.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, after, len(history))
	require.Len(t, f.events.all(), events)
	require.Equal(t, signer, common.StringValue(f.reload(t, c.ID).AssignedToID))
}

func TestInitiateRejectsLockedContract(t *testing.T) {
	for _, status := range []contract.Status{contract.StatusSigning, contract.StatusActive} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			c := f.newContract(t, nil)
			res, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer1"), Variant: "signoff"})
			require.NoError(t, err)
			f.decide(t, res.Approvals, "reviewer1", DecisionApprove)
			if status == contract.StatusActive {
				_, err = f.contracts.Apply(ctx, f.reload(t, c.ID), contract.Transition{To: contract.StatusActive})
				require.NoError(t, err)
			}
			events := len(f.events.all())

			_, err = f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer2")})
			require.ErrorIs(t, err, contract.ErrContractLocked)
			require.Equal(t, common.KindBusinessLogic, common.KindOf(err))

			got := f.reload(t, c.ID)
			require.Equal(t, status, got.Status)
			require.Equal(t, 1, got.ApprovalRound)
			records, err := f.engine.ListApprovals(ctx, c.ID)
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.Len(t, f.events.all(), events)
		})
	}
}

func TestReinitiateIfResetOnlyDuringReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reset := cond(t, "value", ">", 100)
	reset.Type = workflow.ConditionResetWhen
	tplID := f.createTemplate(t, step(workflow.ApproverUser, f.id("legal1"), reset))
	c := f.newContract(t, map[string]any{"value": 50})

	first, err := f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, TemplateID: tplID})
	require.NoError(t, err)
	f.decide(t, first.Approvals, "legal1", DecisionApprove)
	require.Equal(t, contract.StatusApproved, f.reload(t, c.ID).Status)

	require.NoError(t, f.db.Model(&contract.Contract{}).
		Where("id = ?", c.ID).
		Update("fields", datatypes.JSONMap{"value": 200}).Error)

	_, triggered, err := f.engine.ReinitiateIfReset(ctx, c.ID, f.id("owner"))
	require.NoError(t, err)
	require.False(t, triggered)
	got := f.reload(t, c.ID)
	require.Equal(t, contract.StatusApproved, got.Status)
	require.Equal(t, 1, got.ApprovalRound)

	// 驳回后的合同字段变更仍会重新发起
	second := f.newContract(t, map[string]any{"value": 50})
	res, err := f.engine.Initiate(ctx, InitiateInput{ContractID: second.ID, TemplateID: tplID})
	require.NoError(t, err)
	f.decide(t, res.Approvals, "legal1", DecisionReject)
	require.NoError(t, f.db.Model(&contract.Contract{}).
		Where("id = ?", second.ID).
		Update("fields", datatypes.JSONMap{"value": 200}).Error)

	again, triggered, err := f.engine.ReinitiateIfReset(ctx, second.ID, f.id("owner"))
	require.NoError(t, err)
	require.True(t, triggered)
	require.Equal(t, contract.StatusUnderReview, again.Contract.Status)
	require.Equal(t, 2, again.Contract.ApprovalRound)
}

func TestReinitiateIfReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reset := cond(t, "value", ">", 100)
	reset.Type = workflow.ConditionResetWhen
	tplID := f.createTemplate(t, step(workflow.ApproverUser, f.id("legal1"), reset))
	c := f.newContract(t, map[string]any{"value": 50})

	first, err := f.engine.Initiate(ctx, InitiateInput{
		ContractID:        c.ID,
		TemplateID:        tplID,
		ManualApproverIDs: f.ids("reviewer1"),
		Variant:           "signoff",
	})
	require.NoError(t, err)
	require.Len(t, first.Approvals, 2)
	f.decide(t, first.Approvals, "legal1", DecisionApprove)

	_, triggered, err := f.engine.ReinitiateIfReset(ctx, c.ID, f.id("owner"))
	require.NoError(t, err)
	require.False(t, triggered)

	require.NoError(t, f.db.Model(&contract.Contract{}).
		Where("id = ?", c.ID).
		Update("fields", datatypes.JSONMap{"value": 200}).Error)

	res, triggered, err := f.engine.ReinitiateIfReset(ctx, c.ID, f.id("owner"))
	require.NoError(t, err)
	require.True(t, triggered)
	require.Equal(t, 2, res.Contract.ApprovalRound)
	require.Equal(t, string(VariantSignoff), res.Contract.ApprovalVariant)
	require.Len(t, res.Approvals, 2)
	require.True(t, f.approvalOf(t, res.Approvals, "reviewer1").Manual)
	require.Equal(t, tplID, common.StringValue(res.Approvals[0].TemplateID))
}

func TestReinitiateIfResetWithoutTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, nil)

	_, triggered, err := f.engine.ReinitiateIfReset(ctx, c.ID, "")
	require.NoError(t, err)
	require.False(t, triggered)

	_, err = f.engine.Initiate(ctx, InitiateInput{ContractID: c.ID, ManualApproverIDs: f.ids("reviewer1")})
	require.NoError(t, err)
	_, triggered, err = f.engine.ReinitiateIfReset(ctx, c.ID, "")
	require.NoError(t, err)
	require.False(t, triggered)
}
