package api

import (
	"net/http"
	"time"

	"github.com/shaiso/Treeflow/internal/scheduler"
)

// ListSchedules возвращает расписания из SCHEDULES_FILE с ближайшим временем запуска.
// GET /api/v1/schedules?enabled=true
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	if h.schedulesFile == "" {
		List(w, []ScheduleResponse{}, 0)
		return
	}

	schedules, err := scheduler.LoadSchedules(h.schedulesFile)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	onlyEnabled := r.URL.Query().Get("enabled") == "true"
	now := time.Now()

	result := make([]ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		s := &schedules[i]
		if onlyEnabled && !s.IsEnabled() {
			continue
		}
		if next, err := scheduler.CalculateNextDue(s, now); err == nil {
			s.NextDueAt = &next
		}
		result = append(result, ScheduleFromDomain(*s))
	}

	List(w, result, len(result))
}
