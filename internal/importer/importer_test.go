package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/testutil"
)

const history = `Date,Action,Serial,Brand,Model,Location_Branch,Emp_ID,Emp_Name,Courier
2022-01-10,PURCHASE,S1,Dell,Latitude 5420,HQ,,,
2022-01-12,ALLOCATE,S1,,,HQ,E7,Grace,
2022-03-01,RETURN,S1,,,HQ,,,
2022-03-05,TRANSFER,S1,,,Mombasa,,,G4S
2022-04-01,purchase,S2,HP,EliteBook,Mombasa,,,
2022-04-02,ALLOCATE,S404,,,HQ,E7,Grace,
2022-04-03,REPAIR,S2,,,,,,
2022-04-20,REPAIRED,S2,,,,,,
2022-05-01,ALLOCATE,S2,,,Mombasa,E7,Grace,
2022-06-01,RETIRE,S2,,,,,,
2022-13-01,RETURN,S2,,,HQ,,,
`

func TestImportReplaysHistory(t *testing.T) {
	db := testutil.NewDB(t)
	l := ledger.NewService(db)
	admin := testutil.User(t, db, "admin@example.com", models.RoleAdmin)
	ctx := context.Background()

	res, err := New(db, l, &admin.ID).Import(ctx, strings.NewReader(history))
	require.NoError(t, err)
	assert.Equal(t, 8, res.Applied)
	require.Len(t, res.Failed, 3)
	assert.Equal(t, 7, res.Failed[0].Line, "unknown serial")
	assert.Equal(t, "S404", res.Failed[0].Serial)
	assert.Equal(t, 11, res.Failed[1].Line, "retire while held")
	assert.Equal(t, 12, res.Failed[2].Line, "bad date")

	s1, err := l.GetBySerial(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, s1.Status)
	assert.Equal(t, "Mombasa", s1.CurrentBranch.Name)
	assert.Equal(t, "2022-01-10", time.Time(s1.PurchaseDate).Format("2006-01-02"))

	hist, err := l.History(ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, hist, 5)
	assert.Equal(t, models.ActionTransferReceived, hist[0].Action)
	assert.Equal(t, models.ActionTransferInitiated, hist[1].Action)
	assert.Equal(t, "G4S", hist[1].CourierDetails)
	assert.Equal(t, time.Date(2022, 3, 5, 0, 0, 0, 0, time.UTC), hist[1].Timestamp.UTC())
	assert.Equal(t, models.ActionPurchase, hist[4].Action)
	require.NotNil(t, hist[4].CreatedByUserID)
	assert.Equal(t, admin.ID, *hist[4].CreatedByUserID)
	assert.True(t, s1.Custody().Equal(hist[0].Snapshot()))

	s2, err := l.GetBySerial(ctx, "S2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAllocated, s2.Status)
	assert.Equal(t, "Grace", s2.CurrentEmployee.Name)

	var grace models.Employee
	require.NoError(t, db.Where("emp_id = ?", "E7").First(&grace).Error)
	assert.Equal(t, "Grace", grace.Name)
	var branches int64
	require.NoError(t, db.Model(&models.Branch{}).Count(&branches).Error)
	assert.EqualValues(t, 2, branches)
}

func TestImportRejectsBadHeader(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := New(db, ledger.NewService(db), nil).Import(context.Background(), strings.NewReader("When,What\n2022-01-01,PURCHASE\n"))
	assert.Error(t, err)

	_, err = New(db, ledger.NewService(db), nil).Import(context.Background(), strings.NewReader(""))
	assert.Error(t, err)
}

func TestImportRejectsOutOfOrderRows(t *testing.T) {
	db := testutil.NewDB(t)
	l := ledger.NewService(db)
	ctx := context.Background()

	const rows = `Date,Action,Serial,Brand,Model,Location_Branch,Emp_ID,Emp_Name,Courier
2022-05-01,PURCHASE,S1,Dell,Latitude 5420,HQ,,,
2022-03-01,ALLOCATE,S1,,,HQ,E7,Grace,
`
	res, err := New(db, l, nil).Import(ctx, strings.NewReader(rows))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 3, res.Failed[0].Line)
	assert.Equal(t, "S1", res.Failed[0].Serial)
	assert.Contains(t, res.Failed[0].Err, "older than the latest entry")

	s1, err := l.GetBySerial(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, s1.Status)
	hist, err := l.History(ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.ActionPurchase, hist[0].Action)
	assert.True(t, s1.Custody().Equal(hist[0].Snapshot()))
}
