// internal/api/handlers/admin_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"das-service/internal/api/middleware"
	"das-service/internal/api/responses"
	"das-service/internal/core/auth"
	"das-service/internal/domain"
	"das-service/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// AdminHandler lida com o login do administrador e a manutenção dos registros.
type AdminHandler struct {
	auth         auth.Service
	store        storage.Store
	tokenTTL     time.Duration
	secureCookie bool
	respond      *responses.Responder
	logger       *zap.Logger
}

// NewAdminHandler cria um novo handler administrativo. secureCookie marca o
// cookie de sessão como Secure (HTTPS).
func NewAdminHandler(authService auth.Service, store storage.Store, tokenTTL time.Duration, secureCookie bool, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		auth:         authService,
		store:        store,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		respond:      responses.New(logger),
		logger:       logger,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login valida as credenciais, define o cookie de sessão e devolve o token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Error(c, http.StatusBadRequest, "Requisição inválida")
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.respond.Error(c, http.StatusUnauthorized, err.Error())
			return
		}
		h.respond.Error(c, http.StatusInternalServerError, "Erro ao autenticar", err.Error())
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AdminCookie, token, int(h.tokenTTL.Seconds()), "/", "", h.secureCookie, true)
	h.respond.Success(c, gin.H{"token": token}, "Login realizado com sucesso")
}

// Logout apaga o cookie de sessão.
func (h *AdminHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AdminCookie, "", -1, "/", "", h.secureCookie, true)
	h.respond.Success(c, nil, "Sessão encerrada")
}

// List devolve os registros ainda válidos, mais recentes primeiro.
func (h *AdminHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respond.Error(c, http.StatusBadRequest, "Parâmetro limit inválido")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		writeError(h.respond, c, err)
		return
	}
	h.respond.Success(c, records, "")
}

// Replace substitui o registro armazenado pelo JSON enviado, mantendo a validade original.
func (h *AdminHandler) Replace(c *gin.Context) {
	var rec domain.FiscalRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		h.respond.Error(c, http.StatusBadRequest, "Registro inválido", err.Error())
		return
	}
	if rec.Metadata.Issues == nil {
		rec.Metadata.Issues = []domain.Issue{}
	}

	id := c.Param("id")
	stored, err := h.store.Replace(c.Request.Context(), id, &rec)
	if err != nil {
		writeError(h.respond, c, err)
		return
	}

	user := ""
	if claims, ok := middleware.ClaimsFrom(c); ok {
		user = claims.Username
	}
	h.logger.Info("registro substituído", zap.String("id", id), zap.String("admin", user))
	h.respond.Success(c, stored, "Registro atualizado")
}
