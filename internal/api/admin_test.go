package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"cryptovault/internal/domain"
	"cryptovault/internal/events"
	"cryptovault/internal/jobs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDataset(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin)
	seller := env.createUser(t, "seller@example.com", domain.RoleSeller)
	ds := env.seedDataset(t, seller, "Weather", "1")
	path := "/api/admin/datasets/" + ds.ID.String() + "/flag"

	w := env.do(t, http.MethodPost, path, gin.H{"reason": "stolen data"}, &seller)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", errorOf(t, w))

	w = env.do(t, http.MethodPost, path, gin.H{}, &admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Reason is required", errorOf(t, w))

	w = env.do(t, http.MethodPost, "/api/admin/datasets/00000000-0000-0000-0000-000000000000/flag", gin.H{"reason": "x"}, &admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, path, gin.H{"reason": "stolen data"}, &admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Dataset domain.Dataset `json:"dataset"`
	}
	decode(t, w, &body)
	assert.True(t, body.Dataset.IsFraudulent)
	assert.Equal(t, "stolen data", body.Dataset.FraudReason)

	var logs []domain.AuditLog
	require.NoError(t, env.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditFlagFraudulent, logs[0].Action)
	assert.Equal(t, ds.ID.String(), logs[0].EntityID)
	require.NotNil(t, logs[0].AdminID)
	assert.Equal(t, admin.ID, *logs[0].AdminID)
	var changes map[string]map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Changes, &changes))
	assert.Equal(t, false, changes["isFraudulent"]["from"])
	assert.Equal(t, true, changes["isFraudulent"]["to"])

	var page DatasetPage
	decode(t, env.do(t, http.MethodGet, "/api/datasets", nil, nil), &page)
	assert.Zero(t, page.Total)
	assert.Equal(t, []string{events.DatasetFlagged}, env.events.Types())
}

func TestAdminListDatasets(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin)
	seller := env.createUser(t, "seller@example.com", domain.RoleSeller)
	env.seedDataset(t, seller, "A", "1")
	flagged := env.seedDataset(t, seller, "B", "1")
	require.NoError(t, env.db.Model(&flagged).Update("is_fraudulent", true).Error)
	draft := env.seedDataset(t, seller, "C", "1")
	require.NoError(t, env.db.Model(&draft).Update("status", domain.DatasetDraft).Error)

	w := env.do(t, http.MethodGet, "/api/admin/datasets", nil, &admin)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Datasets   []domain.Dataset `json:"datasets"`
		Total      int              `json:"total"`
		Fraudulent int              `json:"fraudulent"`
	}
	decode(t, w, &body)
	assert.Len(t, body.Datasets, 3)
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 1, body.Fraudulent)
}

func TestAdminDeleteDataset(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin)
	seller := env.createUser(t, "seller@example.com", domain.RoleSeller)
	ds := env.seedDataset(t, seller, "Weather", "1")
	for _, email := range []string{"a@example.com", "b@example.com"} {
		buyer := env.createUser(t, email, domain.RoleBuyer)
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/transactions/create", gin.H{"datasetId": ds.ID}, &buyer).Code)
	}

	w := env.do(t, http.MethodDelete, "/api/admin/datasets/"+ds.ID.String(), nil, &admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var datasets, txs int64
	env.db.Model(&domain.Dataset{}).Count(&datasets)
	env.db.Model(&domain.Transaction{}).Count(&txs)
	assert.Zero(t, datasets)
	assert.Zero(t, txs)

	var log domain.AuditLog
	require.NoError(t, env.db.Where("action = ?", domain.AuditDeleteDataset).First(&log).Error)
	assert.Equal(t, "Admin deletion", log.Reason)
	var changes struct {
		DeletedDataset struct {
			Title            string `json:"title"`
			TransactionCount int64  `json:"transactionCount"`
		} `json:"deletedDataset"`
	}
	require.NoError(t, json.Unmarshal(log.Changes, &changes))
	assert.Equal(t, "Weather", changes.DeletedDataset.Title)
	assert.Equal(t, int64(2), changes.DeletedDataset.TransactionCount)

	w = env.do(t, http.MethodDelete, "/api/admin/datasets/"+ds.ID.String(), nil, &admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetUserRole(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin)
	buyer := env.createUser(t, "buyer@example.com", domain.RoleBuyer)
	path := "/api/admin/users/" + buyer.ID.String() + "/role"

	// Token still carries the BUYER claim
	w := env.do(t, http.MethodPost, "/api/datasets", gin.H{"title": "T", "category": "C", "price": "1"}, &buyer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, path, gin.H{"role": domain.RoleSeller, "reason": "verified seller"}, &admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		User domain.User `json:"user"`
	}
	decode(t, w, &body)
	assert.Equal(t, domain.RoleSeller, body.User.Role)

	w = env.do(t, http.MethodPost, "/api/datasets", gin.H{"title": "T", "category": "C", "price": "1"}, &buyer)
	assert.Equal(t, http.StatusCreated, w.Code)

	var log domain.AuditLog
	require.NoError(t, env.db.Where("action = ?", domain.AuditSetRole).First(&log).Error)
	assert.Equal(t, buyer.ID.String(), log.EntityID)
	assert.Equal(t, "verified seller", log.Reason)

	w = env.do(t, http.MethodPut, "/api/admin/users/"+admin.ID.String()+"/role", gin.H{"role": domain.RoleBuyer}, &admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot change your own role", errorOf(t, w))

	w = env.do(t, http.MethodPut, path, gin.H{"role": "OWNER"}, &admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/users/00000000-0000-0000-0000-000000000000/role", gin.H{"role": domain.RoleBuyer}, &admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminListings(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin)
	seller := env.createUser(t, "seller@example.com", domain.RoleSeller)
	a := env.seedDataset(t, seller, "A", "1")
	b := env.seedDataset(t, seller, "B", "1")
	for _, ds := range []domain.Dataset{a, b} {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/admin/datasets/"+ds.ID.String()+"/flag", gin.H{"reason": "spam"}, &admin).Code)
	}

	var logs struct {
		Data  []domain.AuditLog `json:"data"`
		Total int64             `json:"total"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/admin/audit-logs", nil, &admin), &logs)
	assert.Equal(t, int64(2), logs.Total)
	decode(t, env.do(t, http.MethodGet, "/api/admin/audit-logs?entity_id="+a.ID.String(), nil, &admin), &logs)
	require.Len(t, logs.Data, 1)
	assert.Equal(t, a.ID.String(), logs.Data[0].EntityID)
	decode(t, env.do(t, http.MethodGet, "/api/admin/audit-logs?action="+domain.AuditSetRole, nil, &admin), &logs)
	assert.Zero(t, logs.Total)

	var users UserPage
	w := env.do(t, http.MethodGet, "/api/admin/users?page_size=1", nil, &admin)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &users)
	assert.Equal(t, int64(2), users.Total)
	assert.Equal(t, 2, users.TotalPages)
	assert.Len(t, users.Users, 1)
	assert.False(t, users.Cached)

	w = env.do(t, http.MethodGet, "/api/admin/users", nil, &seller)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReconcileEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin)
	seller := env.createUser(t, "seller@example.com", domain.RoleSeller)
	buyer := env.createUser(t, "buyer@example.com", domain.RoleBuyer)
	ds := env.seedDataset(t, seller, "Weather", "1")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/transactions/create", gin.H{"datasetId": ds.ID}, &buyer).Code)
	require.NoError(t, env.db.Model(&ds).UpdateColumn("purchase_count", 7).Error)

	w := env.do(t, http.MethodPost, "/api/admin/reconcile", nil, &admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Success bool        `json:"success"`
		Report  jobs.Report `json:"report"`
	}
	decode(t, w, &body)
	assert.True(t, body.Success)
	assert.Equal(t, int64(1), body.Report.DatasetsFixed)

	var stored domain.Dataset
	require.NoError(t, env.db.First(&stored, "id = ?", ds.ID).Error)
	assert.Equal(t, int64(1), stored.PurchaseCount)
}
