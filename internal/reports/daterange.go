package reports

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/providers"
)

const (
	dateLayout = "2006-01-02"

	// PeriodOther selects the explicit DateFrom/DateTo bounds
	PeriodOther = "other"
	// DefaultPeriod is used when no period is given
	DefaultPeriod = "1"
)

// longest span a time.Duration can hold
var maxPeriodDays = float64(math.MaxInt64) / float64(24*time.Hour)

// DateRangeRequest is the loosely formatted window a caller asks for
type DateRangeRequest struct {
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
	// Period is a number of days counted back from now, or "other"
	Period string `json:"period"`
}

// NormalizeDateRange resolves req against now into a daily-bucketed range.
func NormalizeDateRange(req DateRangeRequest, now time.Time) (providers.DateRange, error) {
	now = now.UTC()
	period := strings.TrimSpace(req.Period)
	if period == "" {
		period = DefaultPeriod
	}

	var from, to time.Time
	if strings.EqualFold(period, PeriodOther) {
		var err error
		if s := strings.TrimSpace(req.DateFrom); s != "" {
			from, err = time.ParseInLocation(dateLayout, s, time.UTC)
			if err != nil {
				return providers.DateRange{}, inputError("the dates haven't been recognized", err)
			}
		}
		if s := strings.TrimSpace(req.DateTo); s != "" {
			to, err = time.ParseInLocation(dateLayout, s, time.UTC)
			if err != nil {
				return providers.DateRange{}, inputError("the dates haven't been recognized", err)
			}
			// last second of the requested day
			to = to.AddDate(0, 0, 1).Add(-time.Second)
		} else {
			to = now
		}
	} else {
		days, err := strconv.ParseFloat(period, 64)
		switch {
		case err != nil:
		case math.IsNaN(days) || math.IsInf(days, 0):
			err = fmt.Errorf("non-finite period %q", period)
		case days < 0:
			err = fmt.Errorf("negative period %q", period)
		case days > maxPeriodDays:
			err = fmt.Errorf("period %q exceeds %.0f days", period, maxPeriodDays)
		}
		if err != nil {
			return providers.DateRange{}, inputError("the time delta must be a number representing the time span in days", err)
		}
		to = now
		from = now.Add(-time.Duration(days * float64(24*time.Hour)))
	}

	if !from.IsZero() && from.After(to) {
		return providers.DateRange{}, inputError(fmt.Sprintf("start %s is after end %s", from.Format(time.RFC3339), to.Format(time.RFC3339)), nil)
	}

	return providers.DateRange{
		From:          from,
		To:            to,
		BucketSeconds: providers.BucketSeconds,
	}, nil
}
