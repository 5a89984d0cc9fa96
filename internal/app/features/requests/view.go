package requests

import (
	"time"

	"github.com/dalemusser/studytrack/internal/app/system/duetime"
	"github.com/dalemusser/studytrack/internal/domain/models"
)

// requestView is the JSON projection of a request. The overdue flag,
// countdown, and color are derived from the due date at read time, so
// a checkout that crossed its deadline between reconciler passes still
// renders as overdue.
type requestView struct {
	models.FileRequest

	IsOverdue     bool   `json:"is_overdue"`
	TimeRemaining string `json:"time_remaining,omitempty"`
	StatusColor   string `json:"status_color"`
}

func newRequestView(req models.FileRequest, now time.Time) requestView {
	view := requestView{
		FileRequest: req,
		StatusColor: duetime.StatusColor(req.Status),
	}

	if req.DueDate != nil && (req.Status == models.StatusActive || req.Status == models.StatusOverdue) {
		view.IsOverdue = duetime.IsOverdue(*req.DueDate, now)
		view.TimeRemaining = duetime.FormatTimeRemaining(*req.DueDate, now)
		if view.IsOverdue {
			view.StatusColor = duetime.StatusColor(models.StatusOverdue)
		}
	}
	return view
}
