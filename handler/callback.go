package handler

import (
	"encoding/json"
	"net/http"

	"github.com/RizleneBERRAG/PIXELCRM-IA/pkg/logger"
	"github.com/RizleneBERRAG/PIXELCRM-IA/service"
	"github.com/gin-gonic/gin"
)

type CallbackHandler struct {
	extractService *service.ExtractService
}

func NewCallbackHandler(extractSvc *service.ExtractService) *CallbackHandler {
	return &CallbackHandler{
		extractService: extractSvc,
	}
}

type CallbackRequest struct {
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

type CallbackContent struct {
	TaskID     string `json:"task_id"`
	DataID     string `json:"data_id"`
	State      string `json:"state"`
	TextZipURL string `json:"text_zip_url"`
	ErrorMsg   string `json:"err_msg"`
}

// HandleCallback receives the extraction API callback, verifies its
// checksum and hands the extracted text to the audit waiting for it.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var content CallbackContent
	if err := json.Unmarshal([]byte(req.Content), &content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	if !h.extractService.VerifyCallback(req.Checksum, req.Content, content.DataID) {
		logger.Warn(c.Request.Context(), "extraction callback checksum mismatch", "data_id", content.DataID)
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid checksum"})
		return
	}

	switch content.State {
	case "done":
		text := ""
		if content.TextZipURL != "" {
			extracted, err := h.extractService.FetchZipAndExtractText(content.TextZipURL)
			if err != nil {
				logger.Warn(c.Request.Context(), "failed to fetch callback result",
					"data_id", content.DataID, "error", err)
			} else {
				text = extracted
			}
		}
		h.extractService.DeliverCallback(content.DataID, text)
	case "failed":
		logger.Warn(c.Request.Context(), "extraction task failed",
			"data_id", content.DataID, "error", content.ErrorMsg)
		h.extractService.DeliverCallback(content.DataID, "")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}
