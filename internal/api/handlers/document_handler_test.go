package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"das-service/internal/core/das"
	"das-service/internal/core/report"
	"das-service/internal/domain"
	"das-service/internal/mocks"
	"das-service/internal/pdftext"
	"das-service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const dasText = `Documento de Arrecadação do Simples Nacional
CNPJ: 12.345.678/0001-99
Período de Apuração: 01/01/2024 a 31/01/2024
Receita Bruta do PA (RPA): R$ 10.000,00
RBT12: R$ 120.000,00
IRPJ CSLL COFINS PIS/Pasep INSS/CPP ICMS IPI ISS Total
40,00 30,00 120,00 25,00 400,00 335,00 0,00 50,00 1.000,00`

var testNow = time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, io.ReadSeeker) (string, error) {
	return s.text, s.err
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func newDocumentRouter(t *testing.T, store storage.Store, extractor pdftext.Extractor, maxUpload int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewDocumentHandler(
		das.NewService(nil, das.WithClock(func() time.Time { return testNow })),
		extractor,
		store,
		report.NewService(),
		DocumentOptions{Expiry: 48 * time.Hour, MaxUploadBytes: maxUpload},
		nil,
	)
	h.now = func() time.Time { return testNow }
	h.newID = func() string { return "id-1" }

	r := gin.New()
	r.POST("/documents/upload", h.HandleUpload)
	r.POST("/documents/text", h.HandleText)
	r.GET("/documents/:id", h.HandleGet)
	r.GET("/documents/:id/export", h.HandleExport)
	return r
}

func postText(r *gin.Engine, text string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(TextRequest{Text: text})
	req := httptest.NewRequest(http.MethodPost, "/documents/text", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleTextStoresRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	var saved domain.StoredRecord
	store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec domain.StoredRecord) error {
		saved = rec
		return nil
	})

	w := postText(newDocumentRouter(t, store, nil, 0), dasText)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env := decode(t, w)
	assert.Equal(t, "success", env.Status)

	var got domain.StoredRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "12345678000199", got.Record.Identification.CNPJ.Digits)
	assert.True(t, got.Record.Taxes.Total.Equal(saved.Record.Taxes.Total))
	assert.Equal(t, testNow.Add(48*time.Hour), saved.ExpiresAt)
}

func TestHandleTextRejectsUnrecognized(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"empty", "", das.ReasonEmptyText},
		{"blank", "  \n\t ", das.ReasonEmptyText},
		{"no currency", "Relatório de visitas\nnenhum valor aqui", das.ReasonNoCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockStore(ctrl)

			w := postText(newDocumentRouter(t, store, nil, 0), tt.text)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			env := decode(t, w)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, []string{tt.reason}, env.Errors)
		})
	}
}

func TestHandleTextSaveFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(assert.AnError)

	w := postText(newDocumentRouter(t, store, nil, 0), dasText)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleGet(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	r := newDocumentRouter(t, store, nil, 0)

	stored := &domain.StoredRecord{ID: "abc", Record: &domain.FiscalRecord{}}
	store.EXPECT().Get(gomock.Any(), "abc").Return(stored, nil)
	store.EXPECT().Get(gomock.Any(), "gone").Return(nil, storage.ErrNotFound)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/gone", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleExport(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	r := newDocumentRouter(t, store, nil, 0)

	rec, err := das.NewService(nil).Process(context.Background(), dasText)
	require.NoError(t, err)
	stored := storage.NewRecord("abc", rec, testNow, time.Hour)
	store.EXPECT().Get(gomock.Any(), "abc").Return(&stored, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/abc/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "DAS_12345678000199_")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestHandleUpload(t *testing.T) {
	t.Run("stores extracted text", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		r := newDocumentRouter(t, store, stubExtractor{text: dasText}, 1<<20)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, "das.PDF", []byte("%PDF-1.4")))
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("wrong extension", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := newDocumentRouter(t, mocks.NewMockStore(ctrl), stubExtractor{text: dasText}, 1<<20)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, "das.txt", []byte("x")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := newDocumentRouter(t, mocks.NewMockStore(ctrl), stubExtractor{text: dasText}, 1<<20)
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pdf without text", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := newDocumentRouter(t, mocks.NewMockStore(ctrl), stubExtractor{err: pdftext.ErrNoText}, 1<<20)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, "scan.pdf", []byte("%PDF-1.4")))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("broken pdf", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := newDocumentRouter(t, mocks.NewMockStore(ctrl), stubExtractor{err: assert.AnError}, 1<<20)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, "broken.pdf", []byte("nope")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := newDocumentRouter(t, mocks.NewMockStore(ctrl), stubExtractor{text: dasText}, 64)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, "big.pdf", bytes.Repeat([]byte("a"), 4096)))
		assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, w.Code)
		assert.NotEqual(t, http.StatusCreated, w.Code)
	})
}
