package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/assetledger/internal/accounts"
	"github.com/xelth-com/assetledger/internal/config"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/qr"
	"github.com/xelth-com/assetledger/internal/registry"
	"github.com/xelth-com/assetledger/internal/reports"
	"github.com/xelth-com/assetledger/internal/settings"
	"github.com/xelth-com/assetledger/internal/storage"
	"github.com/xelth-com/assetledger/internal/testutil"
	"github.com/xelth-com/assetledger/internal/utils"
	"github.com/xelth-com/assetledger/internal/websocket"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	handler http.Handler
	uploads string
	hq      *models.Branch
	alice   *models.Employee
	admin   string
	staff   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	uploads := t.TempDir()
	store, err := storage.NewLocal(uploads, storage.DefaultMaxBytes)
	require.NoError(t, err)
	hub := websocket.NewHub(log)
	l := ledger.NewService(db, ledger.WithNotifier(hub), ledger.WithDocuments(store))
	flag := settings.NewScanFlag(db, 0)

	cfg := &config.Config{
		JWTSecret:     testSecret,
		PublicBaseURL: "https://assets.example.com",
		Server:        config.ServerConfig{CORSAllowedOrigins: []string{"*"}},
	}
	router := NewRouter(Deps{
		Config:   cfg,
		Log:      log,
		Ledger:   l,
		QR:       qr.NewService(db, l, flag, 100),
		ScanFlag: flag,
		Reports:  reports.NewService(db, "HQ"),
		Registry: registry.NewService(db),
		Accounts: accounts.NewService(db, testSecret),
		Store:    store,
		Hub:      hub,
		Now:      func() time.Time { return time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC) },
	})

	env := &testEnv{t: t, db: db, handler: router.Handler(), uploads: uploads}
	env.hq = testutil.Branch(t, db, "HQ")
	env.alice = testutil.Employee(t, db, "E001", "Alice", env.hq)
	env.admin = token(t, testutil.User(t, db, "admin@example.com", models.RoleAdmin))
	env.staff = token(t, testutil.User(t, db, "staff@example.com", models.RoleUser))
	return env
}

func token(t *testing.T, u *models.UserAuth) string {
	t.Helper()
	tok, err := utils.GenerateToken(u, testSecret)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (e *testEnv) purchase(serial string) models.Asset {
	e.t.Helper()
	rec := e.do("POST", "/api/assets", e.staff, PurchaseRequest{
		SerialNumber: serial, Brand: "Dell", Model: "Latitude 5440", PurchaseDate: "2024-01-15", BranchID: e.hq.ID,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var a models.Asset
	decode(e.t, rec, &a)
	return a
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/api/assets", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/api/assets", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do("GET", "/api/admin/transactions", env.staff, nil).Code)
	assert.Equal(t, http.StatusOK, env.do("GET", "/api/admin/transactions", env.admin, nil).Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := accounts.NewService(env.db, testSecret)
	_, err := svc.Create(context.Background(), accounts.UserInput{
		Email: "Tech@Example.com", Name: "Tech", Password: "correct-horse", Role: models.RoleUser,
	})
	require.NoError(t, err)

	rec := env.do("POST", "/api/auth/login", "", LoginRequest{Email: "tech@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	decode(t, rec, &body)
	require.NotEmpty(t, body.Tokens.AccessToken)

	me := env.do("GET", "/api/me", body.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), "tech@example.com")

	bad := env.do("POST", "/api/auth/login", "", LoginRequest{Email: "tech@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestAssetLifecycle(t *testing.T) {
	env := newTestEnv(t)
	a := env.purchase("SN-100")
	assert.Equal(t, models.StatusInStock, a.Status)

	dup := env.do("POST", "/api/assets", env.staff, PurchaseRequest{SerialNumber: "SN-100", BranchID: env.hq.ID})
	assert.Equal(t, http.StatusConflict, dup.Code)

	path := fmt.Sprintf("/api/assets/%d/actions", a.ID)
	rec := env.do("POST", path, env.staff, ActionRequest{Action: "allocate", EmployeeID: env.alice.ID, Notes: "new starter"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &a)
	assert.Equal(t, models.StatusAllocated, a.Status)
	require.NotNil(t, a.CurrentEmployeeID)
	assert.Equal(t, env.alice.ID, *a.CurrentEmployeeID)

	assert.Equal(t, http.StatusUnprocessableEntity, env.do("POST", path, env.staff, ActionRequest{Action: "receive"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", path, env.staff, ActionRequest{Action: "teleport"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", path, env.staff, ActionRequest{Action: "return"}).Code)

	detail := env.do("GET", fmt.Sprintf("/api/assets/%d", a.ID), env.staff, nil)
	require.Equal(t, http.StatusOK, detail.Code)
	var d struct {
		History        []models.AssetHistory `json:"history"`
		AllowedActions []string              `json:"allowedActions"`
	}
	decode(t, detail, &d)
	require.Len(t, d.History, 2)
	assert.Equal(t, models.ActionAllocation, d.History[0].Action)
	assert.Contains(t, d.AllowedActions, "return")
	assert.NotContains(t, d.AllowedActions, "allocate")

	assert.Equal(t, http.StatusNotFound, env.do("GET", "/api/assets/999", env.staff, nil).Code)
}

func TestRevertEndpoint(t *testing.T) {
	env := newTestEnv(t)
	a := env.purchase("SN-200")
	rec := env.do("POST", fmt.Sprintf("/api/assets/%d/actions", a.ID), env.staff, ActionRequest{Action: "allocate", EmployeeID: env.alice.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var hist []models.AssetHistory
	decode(t, env.do("GET", fmt.Sprintf("/api/assets/%d/history", a.ID), env.staff, nil), &hist)
	require.Len(t, hist, 2)
	allocation, purchase := hist[0], hist[1]

	assert.Equal(t, http.StatusForbidden, env.do("POST", fmt.Sprintf("/api/admin/history/%d/revert", allocation.ID), env.staff, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("POST", fmt.Sprintf("/api/admin/history/%d/revert", purchase.ID), env.admin, nil).Code)

	rec = env.do("POST", fmt.Sprintf("/api/admin/history/%d/revert", allocation.ID), env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res ledger.RevertResult
	decode(t, rec, &res)
	require.NotNil(t, res.Restored)
	assert.Equal(t, models.StatusInStock, res.Restored.Status)

	unconfirmed := env.do("POST", fmt.Sprintf("/api/admin/history/%d/revert", purchase.ID), env.admin, map[string]bool{"confirmDeletion": false})
	assert.Equal(t, http.StatusUnprocessableEntity, unconfirmed.Code)

	rec = env.do("POST", fmt.Sprintf("/api/admin/history/%d/revert", purchase.ID), env.admin, map[string]bool{"confirmDeletion": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &res)
	assert.True(t, res.AssetDeleted)
	assert.Equal(t, http.StatusNotFound, env.do("GET", fmt.Sprintf("/api/assets/%d", a.ID), env.staff, nil).Code)
}

func multipartBody(t *testing.T, payload interface{}, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	p, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField(payloadField, string(p)))
	if filename != "" {
		fw, err := mw.CreateFormFile(documentField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) postMultipart(path string, payload interface{}, filename string, content []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	body, ct := multipartBody(e.t, payload, filename, content)
	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+e.staff)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestProofDocumentUpload(t *testing.T) {
	env := newTestEnv(t)
	invoice := []byte("%PDF-1.4 invoice")
	rec := env.postMultipart("/api/assets", PurchaseRequest{SerialNumber: "SN-300", BranchID: env.hq.ID}, "invoice.pdf", invoice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a models.Asset
	decode(t, rec, &a)

	var hist []models.AssetHistory
	decode(t, env.do("GET", fmt.Sprintf("/api/assets/%d/history", a.ID), env.staff, nil), &hist)
	require.Len(t, hist, 1)
	require.NotNil(t, hist[0].DocumentPath)

	doc := env.do("GET", "/api/documents/"+*hist[0].DocumentPath, env.staff, nil)
	require.Equal(t, http.StatusOK, doc.Code)
	assert.Equal(t, "application/pdf", doc.Header().Get("Content-Type"))
	assert.Equal(t, invoice, doc.Body.Bytes())

	// a failed action leaves no orphaned upload behind
	rec = env.postMultipart(fmt.Sprintf("/api/assets/%d/actions", a.ID), ActionRequest{Action: "receive"}, "waybill.pdf", invoice)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	files, err := os.ReadDir(env.uploads)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	rec = env.postMultipart("/api/assets", PurchaseRequest{SerialNumber: "SN-301", BranchID: env.hq.ID}, "payload.exe", invoice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicScan(t *testing.T) {
	env := newTestEnv(t)
	a := env.purchase("SN-400")

	rec := env.do("POST", fmt.Sprintf("/api/assets/%d/qr/generate", a.ID), env.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &a)
	require.NotNil(t, a.QRCodeHash)

	var res qr.Resolution
	rec = env.do("GET", "/scan/"+*a.QRCodeHash, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.Equal(t, qr.OutcomeAsset, res.Outcome)
	require.NotNil(t, res.Asset)
	assert.Equal(t, "SN-400", res.Asset.SerialNumber)

	rec = env.do("GET", "/scan/not-a-tag", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var tags []models.PreGeneratedQR
	rec = env.do("POST", "/api/qr/batch", env.staff, map[string]int{"count": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &tags)
	require.Len(t, tags, 2)

	decode(t, env.do("GET", "/scan/"+tags[0].QRHash, "", nil), &res)
	assert.Equal(t, qr.OutcomeUnassigned, res.Outcome)
	res = qr.Resolution{}
	decode(t, env.do("GET", "/scan/"+tags[0].QRHash, env.staff, nil), &res)
	assert.Equal(t, qr.OutcomeBind, res.Outcome)

	rec = env.do("POST", "/api/admin/settings/scan/toggle", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false}`, rec.Body.String())
	res = qr.Resolution{}
	decode(t, env.do("GET", "/scan/"+*a.QRCodeHash, "", nil), &res)
	assert.Equal(t, qr.OutcomeLockdown, res.Outcome)

	var scans reports.Page[reports.ScanLogRow]
	decode(t, env.do("GET", "/api/admin/scans", env.admin, nil), &scans)
	assert.EqualValues(t, 3, scans.Total)
}

func TestScanFlagSettings(t *testing.T) {
	env := newTestEnv(t)
	assert.JSONEq(t, `{"enabled":true}`, env.do("GET", "/api/admin/settings/scan", env.admin, nil).Body.String())
	assert.Equal(t, http.StatusBadRequest, env.do("PUT", "/api/admin/settings/scan", env.admin, map[string]string{}).Code)

	rec := env.do("PUT", "/api/admin/settings/scan", env.admin, map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false}`, env.do("GET", "/api/admin/settings/scan", env.admin, nil).Body.String())
}

func TestLinkAndReassignTags(t *testing.T) {
	env := newTestEnv(t)
	src := env.purchase("SN-500")
	dst := env.purchase("SN-501")

	var tags []models.PreGeneratedQR
	decode(t, env.do("POST", "/api/qr/batch", env.staff, map[string]int{"count": 1}), &tags)
	require.Len(t, tags, 1)

	rec := env.do("POST", "/api/qr/link", env.staff, map[string]interface{}{"hash": tags[0].QRHash, "assetId": src.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	again := env.do("POST", "/api/qr/link", env.staff, map[string]interface{}{"hash": tags[0].QRHash, "assetId": dst.ID})
	assert.Equal(t, http.StatusConflict, again.Code)

	path := fmt.Sprintf("/api/admin/assets/%d/qr/reassign", src.ID)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", path, env.admin, map[string]string{"targetSerial": " "}).Code)
	rec = env.do("POST", path, env.admin, map[string]string{"targetSerial": "SN-501"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res qr.ReassignResult
	decode(t, rec, &res)
	assert.Nil(t, res.Source.QRCodeHash)
	require.NotNil(t, res.Target.QRCodeHash)
	assert.Equal(t, tags[0].QRHash, *res.Target.QRCodeHash)

	rec = env.do("POST", fmt.Sprintf("/api/admin/assets/%d/qr/reset", dst.ID), env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reset models.Asset
	decode(t, rec, &reset)
	assert.NotEqual(t, tags[0].QRHash, *reset.QRCodeHash)

	rec = env.do("POST", fmt.Sprintf("/api/assets/%d/qr/toggle", dst.ID), env.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &reset)
	assert.False(t, reset.IsQRActive)
}

func TestPrintStickers(t *testing.T) {
	env := newTestEnv(t)
	a := env.purchase("SN-600")
	var tags []models.PreGeneratedQR
	decode(t, env.do("POST", "/api/qr/batch", env.staff, map[string]int{"count": 1}), &tags)

	rec := env.do("POST", "/api/qr/print", env.staff, PrintRequest{AssetIDs: []uint{a.ID}, TagIDs: []uint{tags[0].ID}, StartPosition: 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "qr_stickers_2024-05-06.pdf")

	var got models.Asset
	decode(t, env.do("GET", fmt.Sprintf("/api/assets/%d", a.ID), env.staff, nil), &struct {
		Asset *models.Asset `json:"asset"`
	}{&got})
	assert.NotNil(t, got.QRCodeHash)

	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/qr/print", env.staff, PrintRequest{}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/qr/print", env.staff, PrintRequest{AssetIDs: []uint{a.ID}, Cols: 50}).Code)
	assert.Equal(t, http.StatusNotFound, env.do("POST", "/api/qr/print", env.staff, PrintRequest{TagIDs: []uint{999}}).Code)

	png := env.do("GET", "/api/qr/"+*got.QRCodeHash+"/png", env.staff, nil)
	require.Equal(t, http.StatusOK, png.Code)
	assert.Equal(t, "image/png", png.Header().Get("Content-Type"))
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)
	env.purchase("SN-700")
	env.purchase("SN-701")

	rec := env.do("GET", "/api/export?mode=summary&q=sn-70", env.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="asset_summary_2024-05-06.csv"`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Serial Number"))

	assert.Equal(t, http.StatusBadRequest, env.do("GET", "/api/export?mode=everything", env.staff, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("GET", "/api/export?status=Lost", env.staff, nil).Code)
}

func TestEmployeeEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("POST", "/api/branches", env.staff, map[string]string{"name": "Mombasa", "location": "Coast"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var branch models.Branch
	decode(t, rec, &branch)

	rec = env.do("POST", "/api/employees", env.staff, registry.EmployeeInput{EmpID: "E002", Name: "Bob", BranchID: &branch.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bob models.Employee
	decode(t, rec, &bob)

	var staff []models.Employee
	decode(t, env.do("GET", fmt.Sprintf("/api/branches/%d/employees", branch.ID), env.staff, nil), &staff)
	require.Len(t, staff, 1)
	assert.Equal(t, "Bob", staff[0].Name)

	a := env.purchase("SN-800")
	require.Equal(t, http.StatusOK, env.do("POST", fmt.Sprintf("/api/assets/%d/actions", a.ID), env.staff, ActionRequest{Action: "allocate", EmployeeID: bob.ID}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do("POST", fmt.Sprintf("/api/employees/%d/resign", bob.ID), env.staff, nil).Code)

	require.Equal(t, http.StatusOK, env.do("POST", fmt.Sprintf("/api/assets/%d/actions", a.ID), env.staff, ActionRequest{Action: "return", BranchID: env.hq.ID}).Code)
	rec = env.do("POST", fmt.Sprintf("/api/employees/%d/resign", bob.ID), env.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &bob)
	assert.Equal(t, models.EmployeeInactive, bob.Status)

	staff = nil
	decode(t, env.do("GET", "/api/employees?q=bob", env.staff, nil), &staff)
	assert.Empty(t, staff)
	decode(t, env.do("GET", "/api/employees?status=All&q=bob", env.staff, nil), &staff)
	assert.Len(t, staff, 1)

	assert.Equal(t, http.StatusOK, env.do("GET", fmt.Sprintf("/api/employees/%d", bob.ID), env.staff, nil).Code)
}

func TestDashboardAndTransactions(t *testing.T) {
	env := newTestEnv(t)
	env.purchase("SN-900")

	var d reports.Dashboard
	decode(t, env.do("GET", "/api/dashboard", env.staff, nil), &d)
	assert.EqualValues(t, 1, d.All.Total)
	require.NotNil(t, d.HeadOffice)
	assert.EqualValues(t, 1, d.HeadOffice.Total)

	var page reports.Page[reports.HistoryRow]
	decode(t, env.do("GET", "/api/admin/transactions?page=1", env.admin, nil), &page)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "SN-900", page.Items[0].SerialNumber)
}
