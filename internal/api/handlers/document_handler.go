// internal/api/handlers/document_handler.go
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"das-service/internal/api/responses"
	"das-service/internal/core/das"
	"das-service/internal/core/report"
	"das-service/internal/domain"
	"das-service/internal/pdftext"
	"das-service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DocumentHandler lida com o envio, a consulta e a exportação de documentos DAS.
type DocumentHandler struct {
	service   das.Service
	extractor pdftext.Extractor
	store     storage.Store
	reports   report.Service
	respond   *responses.Responder
	logger    *zap.Logger

	expiry    time.Duration
	maxUpload int64
	now       func() time.Time
	newID     func() string
}

// DocumentOptions são os limites aplicados pelo handler.
type DocumentOptions struct {
	Expiry         time.Duration
	MaxUploadBytes int64
}

// NewDocumentHandler cria um novo handler de documentos.
func NewDocumentHandler(service das.Service, extractor pdftext.Extractor, store storage.Store, reports report.Service, opts DocumentOptions, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{
		service:   service,
		extractor: extractor,
		store:     store,
		reports:   reports,
		respond:   responses.New(logger),
		logger:    logger,
		expiry:    opts.Expiry,
		maxUpload: opts.MaxUploadBytes,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// TextRequest é o corpo de POST /documents/text.
type TextRequest struct {
	Text string `json:"text"`
}

// HandleUpload recebe um PDF (campo "file"), extrai o texto e armazena o registro.
func (h *DocumentHandler) HandleUpload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respond.Error(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Arquivo excede o limite de %d bytes", h.maxUpload))
			return
		}
		h.respond.Error(c, http.StatusBadRequest, "Arquivo PDF não encontrado ou inválido")
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".pdf" {
		h.respond.Error(c, http.StatusBadRequest, fmt.Sprintf("Extensão de arquivo não suportada: %s", ext))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respond.Error(c, http.StatusInternalServerError, "Não foi possível abrir o arquivo")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.respond.Error(c, http.StatusInternalServerError, "Não foi possível ler o arquivo")
		return
	}

	text, err := h.extractor.Extract(c.Request.Context(), bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, pdftext.ErrNoText) {
			h.respond.Error(c, http.StatusUnprocessableEntity, "Não foi possível ler este documento", err.Error())
			return
		}
		h.logger.Warn("falha ao ler PDF", zap.String("filename", fileHeader.Filename), zap.Error(err))
		h.respond.Error(c, http.StatusBadRequest, "Arquivo PDF inválido", err.Error())
		return
	}

	h.processAndStore(c, text)
}

// HandleText processa um texto já extraído de um DAS.
func (h *DocumentHandler) HandleText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Error(c, http.StatusBadRequest, "Requisição inválida")
		return
	}
	h.processAndStore(c, req.Text)
}

func (h *DocumentHandler) processAndStore(c *gin.Context, text string) {
	rec, err := h.service.Process(c.Request.Context(), text)
	if err != nil {
		writeError(h.respond, c, err)
		return
	}

	stored := storage.NewRecord(h.newID(), rec, h.now(), h.expiry)
	if err := h.store.Save(c.Request.Context(), stored); err != nil {
		h.logger.Error("falha ao salvar registro", zap.String("id", stored.ID), zap.Error(err))
		h.respond.Error(c, http.StatusInternalServerError, "Erro ao salvar o registro")
		return
	}

	message := "Documento processado com sucesso"
	if len(rec.Metadata.Issues) > 0 {
		message = fmt.Sprintf("Documento processado com %d pendência(s)", len(rec.Metadata.Issues))
	}
	h.respond.Respond(c, http.StatusCreated, stored, message)
}

// HandleGet devolve um registro armazenado.
func (h *DocumentHandler) HandleGet(c *gin.Context) {
	stored, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(h.respond, c, err)
		return
	}
	h.respond.Success(c, stored, "")
}

// HandleExport devolve o registro como planilha XLSX.
func (h *DocumentHandler) HandleExport(c *gin.Context) {
	stored, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(h.respond, c, err)
		return
	}

	out, err := h.reports.Workbook(stored)
	if err != nil {
		h.logger.Error("falha ao gerar planilha", zap.String("id", stored.ID), zap.Error(err))
		h.respond.Error(c, http.StatusInternalServerError, "Erro ao gerar a planilha", err.Error())
		return
	}

	fileName := fmt.Sprintf("DAS_%s_%s.xlsx", exportName(stored.Record), time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, xlsxContentType, out)
}

func exportName(rec *domain.FiscalRecord) string {
	if rec != nil && rec.Identification.CNPJ != nil && rec.Identification.CNPJ.Valid {
		return rec.Identification.CNPJ.Digits
	}
	return "registro"
}

// writeError maps service errors to HTTP statuses.
func writeError(r *responses.Responder, c *gin.Context, err error) {
	var unrecognized *das.UnrecognizedError
	switch {
	case errors.As(err, &unrecognized):
		r.Error(c, http.StatusBadRequest, "Não foi possível ler este documento", unrecognized.Reason)
	case errors.Is(err, das.ErrUnrecognizedDocument):
		r.Error(c, http.StatusBadRequest, "Não foi possível ler este documento")
	case errors.Is(err, storage.ErrNotFound):
		r.Error(c, http.StatusNotFound, "Registro não encontrado ou expirado")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.Error(c, http.StatusRequestTimeout, "Requisição cancelada")
	default:
		r.Error(c, http.StatusInternalServerError, "Erro interno", err.Error())
	}
}
