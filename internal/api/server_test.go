package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendlens/spendlens-backend/internal/api"
	"github.com/spendlens/spendlens-backend/internal/api/dto"
	"github.com/spendlens/spendlens-backend/internal/application/service"
	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/events"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/cache"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
	"github.com/spendlens/spendlens-backend/internal/oracle"
)

type serverFixture struct {
	server *api.Server
	repo   *storage.MockRepository
	oracle *oracle.Mock
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	repo := storage.NewMockRepository()
	mem := cache.NewMemory()
	bus := events.NewMock()
	mock := oracle.NewMock()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	merchants := service.NewMerchantService(repo, mem, bus, mock, logger)
	grouper := merchant.NewGrouper(merchants.Resolver(), merchants, logger)
	analyzer := pattern.NewAnalyzer(mock, pattern.NewClassifier(), logger)
	patterns := service.NewPatternService(repo, mem, bus, grouper, analyzer, logger)
	transactions := service.NewTransactionService(repo, mem, bus, merchants, logger)

	server := api.NewServer(api.DefaultConfig(), api.Services{
		Merchants:    merchants,
		Transactions: transactions,
		Patterns:     patterns,
	}, logger)

	return &serverFixture{server: server, repo: repo, oracle: mock}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
}

func TestServer_Transactions(t *testing.T) {
	t.Run("POST creates an analyzed transaction", func(t *testing.T) {
		f := newTestServer(t)

		rec := f.do(t, http.MethodPost, "/api/transactions", dto.CreateTransactionRequest{
			Description: "NETFLIX.COM",
			Amount:      -19.99,
			Date:        "2024-01-01",
		})

		require.Equal(t, http.StatusCreated, rec.Code)

		var txn storage.Transaction
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&txn))
		assert.NotEmpty(t, txn.ID)
		assert.NotEmpty(t, txn.MerchantID)
		assert.True(t, txn.IsAnalyzed)
	})

	t.Run("POST with bad date is a 400", func(t *testing.T) {
		f := newTestServer(t)

		rec := f.do(t, http.MethodPost, "/api/transactions", dto.CreateTransactionRequest{
			Description: "NETFLIX.COM",
			Amount:      -19.99,
			Date:        "first of January",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GET unknown id is a 404", func(t *testing.T) {
		f := newTestServer(t)

		rec := f.do(t, http.MethodGet, "/api/transactions/missing", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})

	t.Run("GET list returns pagination envelope", func(t *testing.T) {
		f := newTestServer(t)

		rec := f.do(t, http.MethodGet, "/api/transactions?limit=10", nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var list storage.TransactionList
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
		assert.Equal(t, 10, list.Limit)
	})
}

func TestServer_Merchants(t *testing.T) {
	t.Run("normalize answers with the classification", func(t *testing.T) {
		f := newTestServer(t)
		f.oracle.MerchantResults["NETFLIX.COM"] = &merchant.Classification{
			NormalizedName: "Netflix",
			Category:       "Entertainment",
			Confidence:     0.95,
			Flags:          []string{},
		}

		rec := f.do(t, http.MethodPost, "/api/merchants/normalize", dto.NormalizeRequest{Description: "NETFLIX.COM"})

		require.Equal(t, http.StatusOK, rec.Code)

		var resp dto.NormalizeResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Netflix", resp.NormalizedName)
	})

	t.Run("create then get round-trips", func(t *testing.T) {
		f := newTestServer(t)

		rec := f.do(t, http.MethodPost, "/api/merchants", dto.CreateMerchantRequest{
			OriginalName:   "NETFLIX.COM",
			NormalizedName: "Netflix",
			Category:       "Entertainment",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var created storage.Merchant
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

		rec = f.do(t, http.MethodGet, "/api/merchants/"+created.ID, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("duplicate create is a 409", func(t *testing.T) {
		f := newTestServer(t)

		body := dto.CreateMerchantRequest{NormalizedName: "Netflix"}
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/merchants", body).Code)
		assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/merchants", body).Code)
	})

	t.Run("rules round-trip", func(t *testing.T) {
		f := newTestServer(t)

		rec := f.do(t, http.MethodPost, "/api/merchants/m-1/rules", dto.CreateRuleRequest{
			Pattern:        "^NETFLIX",
			NormalizedName: "Netflix",
			Priority:       100,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/rules", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var rules []*storage.MerchantRule
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&rules))
		assert.Len(t, rules, 1)
	})
}

func TestServer_Analysis(t *testing.T) {
	t.Run("detects patterns across a submitted batch", func(t *testing.T) {
		f := newTestServer(t)

		transactions := make([]dto.CreateTransactionRequest, 0, 3)
		for _, date := range []string{"2024-01-01", "2024-02-01", "2024-03-01"} {
			transactions = append(transactions, dto.CreateTransactionRequest{
				Description: "NETFLIX.COM",
				Amount:      -19.99,
				Date:        date,
			})
		}

		rec := f.do(t, http.MethodPost, "/api/analysis/patterns", dto.AnalyzeRequest{Transactions: transactions})

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			DetectedPatterns []*storage.Pattern `json:"detected_patterns"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.DetectedPatterns, 1)
		assert.Equal(t, "MONTHLY", resp.DetectedPatterns[0].Frequency)
		assert.Equal(t, 1, f.repo.PatternCount())
	})

	t.Run("empty batch is a 400", func(t *testing.T) {
		f := newTestServer(t)

		rec := f.do(t, http.MethodPost, "/api/analysis/patterns", dto.AnalyzeRequest{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_Upload(t *testing.T) {
	f := newTestServer(t)

	csv := strings.Join([]string{
		"description,amount,date",
		"NETFLIX.COM,-19.99,2024-01-01",
		"NETFLIX.COM,-19.99,2024-02-01",
		"BAD ROW,not-a-number,2024-02-02",
	}, "\n")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "transactions.csv")
	require.NoError(t, err)
	_, err = fmt.Fprint(part, csv)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.ProcessedCount)
	assert.Equal(t, 1, resp.FailedCount)
	assert.Len(t, resp.Transactions, 2)
	assert.Len(t, resp.Patterns, 1)
}

func TestServer_Patterns(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/patterns", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var patterns []*storage.Pattern
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&patterns))
	assert.Empty(t, patterns)
}
