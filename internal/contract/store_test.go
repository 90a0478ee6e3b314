package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"contracthub/internal/common"

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
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()

	c := &Contract{
		Title:       "供货框架协议",
		CreatedByID: uuid.NewString(),
		Fields:      datatypes.JSONMap{"value": 500000, "region": "EU"},
	}
	require.NoError(t, store.Create(ctx, c))
	require.NotEmpty(t, c.ID)
	require.Equal(t, StatusDraft, c.Status)

	loaded, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "EU", loaded.FieldValues()["region"])
	require.Equal(t, json.Number("500000"), loaded.FieldValues()["value"])

	_, err = store.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrContractNotFound)
	require.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestStoreApplyWritesOnlyOnChange(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	c := &Contract{Title: "NDA", CreatedByID: uuid.NewString()}
	require.NoError(t, store.Create(ctx, c))

	reviewer := uuid.NewString()
	changed, err := store.Apply(ctx, c, Transition{To: StatusUnderReview, AssignedTo: &reviewer, Reason: "initiate"})
	require.NoError(t, err)
	require.True(t, changed)

	sameReviewer := reviewer
	changed, err = store.Apply(ctx, c, Transition{To: StatusUnderReview, AssignedTo: &sameReviewer})
	require.NoError(t, err)
	require.False(t, changed)

	other := uuid.NewString()
	changed, err = store.Apply(ctx, c, Transition{To: StatusUnderReview, AssignedTo: &other})
	require.NoError(t, err)
	require.True(t, changed, "assignee hand-off is a change")

	_, err = store.Apply(ctx, c, Transition{To: Status("ARCHIVED")})
	require.ErrorIs(t, err, common.ErrValidation)

	loaded, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusUnderReview, loaded.Status)
	require.Equal(t, other, common.StringValue(loaded.AssignedToID))

	history, err := store.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, StatusDraft, history[0].FromStatus)
	require.Equal(t, StatusUnderReview, history[0].ToStatus)
}

func TestStoreGetForUpdateInTransaction(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	c := &Contract{Title: "MSA", CreatedByID: uuid.NewString()}
	require.NoError(t, store.Create(ctx, c))

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := store.WithTx(tx).GetForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		return store.WithTx(tx).StartApprovalRound(ctx, locked, "signoff")
	})
	require.NoError(t, err)

	loaded, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.ApprovalRound)
	require.Equal(t, "signoff", loaded.ApprovalVariant)
}

func TestStoreUpdateFields(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()

	c := &Contract{
		Title:       "服务协议",
		CreatedByID: uuid.NewString(),
		Fields:      datatypes.JSONMap{"value": 100, "region": "EU", "draft": true},
	}
	require.NoError(t, store.Create(ctx, c))

	updated, err := store.UpdateFields(ctx, c.ID, map[string]any{"value": 2500000, "draft": nil})
	require.NoError(t, err)
	require.Equal(t, json.Number("2500000"), updated.FieldValues()["value"])
	require.Equal(t, "EU", updated.FieldValues()["region"])
	require.NotContains(t, updated.FieldValues(), "draft")

	loaded, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, json.Number("2500000"), loaded.FieldValues()["value"])
	require.NotContains(t, loaded.FieldValues(), "draft")

	_, err = store.Apply(ctx, loaded, Transition{To: StatusSigning})
	require.NoError(t, err)
	_, err = store.UpdateFields(ctx, c.ID, map[string]any{"value": 1})
	require.ErrorIs(t, err, ErrContractLocked)
	require.Equal(t, common.KindBusinessLogic, common.KindOf(err))

	_, err = store.UpdateFields(ctx, uuid.NewString(), nil)
	require.ErrorIs(t, err, ErrContractNotFound)
}
