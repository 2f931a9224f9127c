package settingsstore

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CronParser accepts standard five-field expressions and descriptors such as
// "@hourly" or "@every 30m".
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronSchedule validates a cron schedule string
func ValidateCronSchedule(schedule string) error {
	_, err := CronParser.Parse(schedule)
	return err
}

// GetCronDescription returns a human-readable description of a cron schedule
func GetCronDescription(schedule string) string {
	switch schedule {
	case "@hourly", "0 * * * *":
		return "Every hour at :00"
	case "@every 1h":
		return "Every hour"
	case "*/15 * * * *":
		return "Every 15 minutes"
	case "*/30 * * * *":
		return "Every 30 minutes"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "@daily", "@midnight", "0 0 * * *":
		return "Daily at midnight"
	case "@weekly", "0 0 * * 0":
		return "Weekly on Sunday at midnight"
	}
	if every, ok := strings.CutPrefix(schedule, "@every "); ok {
		return "Every " + every
	}
	return "Custom schedule: " + schedule
}

// GetNextRunTime calculates when the next sync will run based on the schedule
func GetNextRunTime(schedule string, from time.Time) (*time.Time, error) {
	sched, err := CronParser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(from)
	return &next, nil
}
