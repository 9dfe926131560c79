package server

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handleUpload stores the multipart field "file" under a generated name and
// records it as the stage report.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	a, st, ok := s.load(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "report too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing report file")
		return
	}
	defer file.Close()

	name := uuid.NewString() + reportExt(header.Filename)
	next, err := s.engine.AttachReport(a, st, name)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}

	dest := filepath.Join(s.cfg.UploadDir, name)
	if err := s.store(dest, file); err != nil {
		s.logger.Error("store report failed", zap.Int64("stage_id", st.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	saved, err := s.stages.Update(r.Context(), next, st.Version)
	if err != nil {
		_ = os.Remove(dest)
		s.writeStageError(w, r, err)
		return
	}
	if st.RapportPath != nil && *st.RapportPath != name {
		s.removeReport(st.ID, *st.RapportPath)
	}
	s.logger.Info("report uploaded",
		zap.Int64("stage_id", st.ID),
		zap.String("file", name),
		zap.Int64("size", header.Size),
	)
	writeJSON(w, http.StatusOK, saved)
}

// removeReport deletes a replaced report. A missing file is not an error.
func (s *Server) removeReport(stageID int64, name string) {
	path := filepath.Join(s.cfg.UploadDir, filepath.Base(name))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("remove replaced report failed",
			zap.Int64("stage_id", stageID),
			zap.String("file", name),
			zap.Error(err),
		)
	}
}

func (s *Server) store(dest string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	return f.Close()
}

// reportExt keeps a short alphanumeric extension of the client file name.
func reportExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
