package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

type CVHandler struct {
	svc services.CVFileService
}

func NewCVHandler(svc services.CVFileService) *CVHandler {
	return &CVHandler{svc: svc}
}

const maxCVBytes = 10 << 20

// openPDF checks name, size and magic bytes of an uploaded CV and returns a
// reader over the whole file.
func openPDF(fh *multipart.FileHeader) (io.ReadCloser, error) {
	const op = "CVHandler.Upload"

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return nil, utils.E(utils.CodeInvalidArgument, op, "only .pdf is allowed", nil)
	}
	if fh.Size <= 0 || fh.Size > maxCVBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file too large (max 10MB)", nil)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to open upload", err)
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	if http.DetectContentType(head) != "application/pdf" {
		_ = f.Close()
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid content type (must be pdf)", nil)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), f), f}, nil
}

func (h *CVHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CVHandler.Upload", "missing multipart field 'file'", err))
		return
	}
	r, err := openPDF(fh)
	if err != nil {
		writeError(c, err)
		return
	}
	defer r.Close()

	objectName := "cv/" + userID + "/" + uuid.NewString() + ".pdf"
	row, err := h.svc.Upload(c.Request.Context(), userID, fh.Filename, int(fh.Size), "application/pdf", objectName, r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Latest returns the newest CV of the caller with a short-lived download URL.
func (h *CVHandler) Latest(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	row, url, err := h.svc.LatestURL(c.Request.Context(), userID, 15*time.Minute)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": row, "url": url})
}
