package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duelperf/duel-logger/internal/storage"
)

// backupUploadLimit caps import uploads. The exports of even multi-year
// logs are well under a megabyte, so 32 MiB leaves ample headroom.
const backupUploadLimit = 32 << 20

// BackupHandler handles CSV backup export and import. These endpoints
// are rate limited because each one walks the whole database.
type BackupHandler struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(store *storage.Store, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{store: store, logger: logger}
}

// Export writes a timestamped CSV backup into the configured backup
// directory and returns its path.
// Route: POST /api/v1/backup/export
func (h *BackupHandler) Export(c *gin.Context) {
	dir, err := h.store.ExportBackup(c.Request.Context(), "")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backup_dir": dir})
}

// ExportArchive streams the backup as a zip download. A copy is also
// retained in the backup directory.
// Route: GET /api/v1/backup/archive
func (h *BackupHandler) ExportArchive(c *gin.Context) {
	_, name, data, err := h.store.ExportBackupZip(c.Request.Context(), "")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/zip", data)
}

// Import restores a previously exported zip archive uploaded as the
// "archive" form file. Rows are upserted and usage counts recomputed.
// Route: POST /api/v1/backup/import
func (h *BackupHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("archive")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing archive upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, backupUploadLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read archive upload"})
		return
	}

	counts, err := h.store.ImportBackupArchive(c.Request.Context(), data)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": counts})
}
