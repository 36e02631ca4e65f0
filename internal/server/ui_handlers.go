package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nightlifeflyers/flyerstudio/internal/ui"
)

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	jobs := s.jobManager.ListJobs()
	jobItems := make([]ui.JobListItem, len(jobs))
	for i, job := range jobs {
		jobItems[i] = ui.JobListItem{
			ID:           job.ID,
			State:        string(job.State),
			Source:       job.Source,
			Progress:     progressLabel(job),
			OpaquePixels: job.OpaquePixels,
			StartTime:    job.StartTime,
			EndTime:      job.EndTime,
			Error:        job.Error,
			HasResult:    job.State == StateCompleted,
		}
		if job.Width > 0 {
			jobItems[i].Size = sizeLabel(job.Width, job.Height)
		}
	}

	kits, err := s.opts.Store.ListKits()
	if err != nil {
		slog.Warn("Failed to list brand kits for index", "error", err)
	}
	kitItems := make([]ui.KitListItem, len(kits))
	for i, kit := range kits {
		kitItems[i] = ui.KitListItem{Name: kit.Name, Fonts: kit.Fonts}
		for _, c := range kit.Colors {
			kitItems[i].Colors = append(kitItems[i].Colors, c.Hex)
		}
	}

	if err := ui.Index(jobItems, kitItems).Render(r.Context(), w); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}

func progressLabel(job Job) string {
	if len(job.Stages) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d/%d", job.Completed, len(job.Stages))
}

func sizeLabel(w, h int) string {
	return fmt.Sprintf("%d×%d", w, h)
}
