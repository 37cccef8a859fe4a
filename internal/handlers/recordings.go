package handlers

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/repository"
)

// RecordingsHandler lists the recordings directory on /recordings and
// serves single files as downloads on /recordings/<name>.
func RecordingsHandler(dir string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/recordings")
		name = strings.TrimPrefix(name, "/")

		if name == "" {
			listRecordings(w, dir, logger)
			return
		}

		if !isValidFilename(name) {
			http.NotFound(w, r)
			return
		}
		downloadRecording(w, r, filepath.Join(dir, name), logger)
	}
}

func listRecordings(w http.ResponseWriter, dir string, logger *logger.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		logger.Error("Error reading recordings directory: %v", err)
		http.Error(w, fmt.Sprintf("Error reading recordings: %v", err), http.StatusInternalServerError)
		return
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	// Session names embed their start time, newest first
	slices.SortFunc(names, func(a, b string) int { return strings.Compare(b, a) })

	var b strings.Builder
	b.WriteString("<html><body><h1>Recordings</h1><ul>")
	for _, n := range names {
		fmt.Fprintf(&b, `<li><a href="/recordings/%s">%s</a></li>`, url.PathEscape(n), html.EscapeString(n))
	}
	b.WriteString("</ul></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(b.String()))
}

func downloadRecording(w http.ResponseWriter, r *http.Request, path string, logger *logger.Logger) {
	file, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	logger.Info("📥 Recording downloaded: %s", info.Name())
}

// DeleteRecordingHandler removes a finished recording file and its metadata.
// The session being written is refused with 409.
func DeleteRecordingHandler(dir string, repo repository.RecordingRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !isValidFilename(name) {
			http.NotFound(w, r)
			return
		}

		rec, err := repo.GetByFilename(name)
		if err != nil {
			logger.Error("Error looking up recording %s: %v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.NotFound(w, r)
			return
		}
		if rec.Status == models.RecordingActive {
			http.Error(w, "Recording in progress", http.StatusConflict)
			return
		}

		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to remove recording %s: %v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if err := repo.DeleteByFilename(name); err != nil {
			logger.Error("Failed to delete recording %s: %v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("🗑️  Recording deleted: %s", name)
		w.WriteHeader(http.StatusNoContent)
	}
}

// isValidFilename accepts a single path element with no traversal.
func isValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return filepath.Base(name) == name
}
