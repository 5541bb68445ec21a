package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/middleware"
	"github.com/RizleneBERRAG/PIXELCRM-IA/model"
	"github.com/RizleneBERRAG/PIXELCRM-IA/pkg/logger"
	"github.com/RizleneBERRAG/PIXELCRM-IA/rules"
	"github.com/RizleneBERRAG/PIXELCRM-IA/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	exportService  *service.ExportService
	extractService *service.ExtractService
	auditService   *service.AuditService
	crmService     *service.CRMService
	store          *service.AuditStore
}

func NewAuditHandler(exportSvc *service.ExportService, extractSvc *service.ExtractService, auditSvc *service.AuditService, crmSvc *service.CRMService) *AuditHandler {
	return &AuditHandler{
		exportService:  exportSvc,
		extractService: extractSvc,
		auditService:   auditSvc,
		crmService:     crmSvc,
		store:          service.GetAuditStore(),
	}
}

// uploadedFile is one stored PDF queued for extraction, in upload order.
type uploadedFile struct {
	name string
	url  string
}

// Create receives the audit form (CRM fields + PDF files), stores the
// files, and starts the audit pipeline asynchronously.
func (h *AuditHandler) Create(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	ien := strings.TrimSpace(c.PostForm("ien"))
	clientName := strings.TrimSpace(c.PostForm("client_nom"))
	delegataire := strings.TrimSpace(c.PostForm("delegataire"))
	if ien == "" || clientName == "" || delegataire == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ien, client_nom and delegataire are required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	fields := map[string]string{
		"N° SIRET":             c.PostForm("siret"),
		"Type d'opération CEE": c.PostForm("type_operation"),
		"Prime CEE":            c.PostForm("prime_cee"),
		"N° prime CEE":         c.PostForm("numero_prime"),
	}

	auditID := uuid.New().String()

	var files []uploadedFile
	var fileNames []string
	var ignored []string
	contents := make(map[string][]byte)

	for _, header := range fileHeaders {
		// Drop any client-side directory components
		name := filepath.Base(header.Filename)

		if ext := strings.ToLower(filepath.Ext(name)); ext != ".pdf" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Only PDF files are allowed, got %s", name)})
			return
		}

		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file " + name})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file " + name})
			return
		}

		if len(content) == 0 {
			ignored = append(ignored, name)
			continue
		}

		objectName := fmt.Sprintf("uploads/%s/%s/%s", tenant, auditID, name)
		if err := h.exportService.UploadFile(c.Request.Context(), objectName, bytes.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file: " + err.Error()})
			return
		}

		pdfURL, err := h.exportService.GetPresignedURL(c.Request.Context(), objectName)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL: " + err.Error()})
			return
		}

		files = append(files, uploadedFile{name: name, url: pdfURL})
		fileNames = append(fileNames, name)
		contents[name] = content
	}

	dossier := &model.Dossier{
		IEN:         ien,
		ClientName:  clientName,
		Delegataire: delegataire,
		Fields:      fields,
		Files:       fileNames,
	}

	audit := &model.Audit{
		ID:          auditID,
		IEN:         ien,
		ClientName:  clientName,
		Delegataire: delegataire,
		Tenant:      tenant,
		Status:      model.StatusPending,
		Files:       fileNames,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	h.store.Save(audit)

	go h.process(audit.ID, dossier, files, contents, ignored)

	c.JSON(http.StatusOK, gin.H{
		"id":            auditID,
		"ien":           ien,
		"status":        model.StatusPending,
		"ignored_files": ignored,
	})
}

// process runs the audit pipeline: extract each PDF's text in upload
// order, validate the dossier, export the result folder.
func (h *AuditHandler) process(auditID string, dossier *model.Dossier, files []uploadedFile, contents map[string][]byte, ignored []string) {
	ctx := context.WithValue(context.Background(), logger.DossierKey, dossier.IEN)

	h.store.UpdateStatus(auditID, model.StatusProcessing, "")

	var bundle rules.Bundle
	for _, f := range files {
		dataID := auditID + ":" + f.name
		text := h.extractService.ExtractText(ctx, f.url, dataID)
		bundle = append(bundle, rules.File{Name: f.name, Text: text})
	}

	result := h.auditService.Validate(ctx, dossier, bundle)

	if len(ignored) > 0 {
		h.auditService.AppendProblem(result, "Ignored empty PDF files: "+strings.Join(ignored, ", "))
	}

	exportURL, err := h.exportService.ExportAudit(ctx, dossier, result, contents)
	if err != nil {
		logger.Warn(ctx, "audit export failed", "audit_id", auditID, "error", err)
	} else {
		result.ExportURL = exportURL
	}

	h.store.UpdateResult(auditID, result)
	logger.Info(ctx, "audit completed", "audit_id", auditID, "status", result.Status, "problems", len(result.Problems))
}

// Prefill looks the dossier up in PixelCRM and returns the form fields.
func (h *AuditHandler) Prefill(c *gin.Context) {
	if h.crmService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "CRM prefill is not configured"})
		return
	}

	ien := strings.TrimSpace(c.Query("ien"))
	if ien == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ien query parameter is required"})
		return
	}

	data, err := h.crmService.GetDossier(ien)
	if err != nil {
		logger.Error(c.Request.Context(), "CRM prefill failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CRM lookup failed"})
		return
	}
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dossier not found in PixelCRM"})
		return
	}

	c.JSON(http.StatusOK, data)
}

// List returns all audits for the current tenant
func (h *AuditHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	audits := h.store.GetByTenant(tenant)

	// Return without full results for list view
	result := make([]gin.H, len(audits))
	for i, audit := range audits {
		result[i] = gin.H{
			"id":          audit.ID,
			"ien":         audit.IEN,
			"client_nom":  audit.ClientName,
			"delegataire": audit.Delegataire,
			"status":      audit.Status,
			"created_at":  audit.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"updated_at":  audit.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, gin.H{"audits": result})
}

// Get returns a single audit with its result
func (h *AuditHandler) Get(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	audit := h.store.Get(id)
	if audit == nil || audit.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
		return
	}

	c.JSON(http.StatusOK, audit)
}

// GetStatus returns the processing status of an audit
func (h *AuditHandler) GetStatus(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	audit := h.store.Get(id)
	if audit == nil || audit.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        audit.ID,
		"status":    audit.Status,
		"error_msg": audit.ErrorMsg,
	})
}

// Delete deletes an audit
func (h *AuditHandler) Delete(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	audit := h.store.Get(id)
	if audit == nil || audit.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
		return
	}

	h.store.Delete(id)

	c.JSON(http.StatusOK, gin.H{"message": "Audit deleted"})
}
