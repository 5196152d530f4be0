package engagement

import (
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/models"
)

// LogDisplay is the headless presentation surface: it records show and
// hide transitions in the structured log. The storefront front-end
// subscribes to these events to render the actual pop-up.
type LogDisplay struct {
	logger logger.Logger
}

func NewLogDisplay(log logger.Logger) *LogDisplay {
	return &LogDisplay{logger: log.WithFields(map[string]interface{}{"component": "display"})}
}

func (d *LogDisplay) Show(n models.Notification) {
	d.logger.Info("notification shown", map[string]interface{}{
		"notificationId": n.ID,
		"typeCode":       n.TypeCode,
		"message":        n.Message,
	})
}

func (d *LogDisplay) Hide() {
	d.logger.Debug("notification hidden", nil)
}
