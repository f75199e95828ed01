// Package validate holds the checks shared by ingestion and the price views.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/model"
)

// ConfigurationError reports a missing or invalid required option.
type ConfigurationError struct {
	Option  string
	Problem string
}

func (err *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %s", err.Option, err.Problem)
}

func requireText(option, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ConfigurationError{option, "must be configured"}
	}

	return nil
}

func requirePositive(option string, value int) error {
	if value <= 0 {
		return &ConfigurationError{option, "must be a positive integer"}
	}

	return nil
}

// ValidateFetchConfig fails on the first blank or non-positive fetch option.
func ValidateFetchConfig(cfg *config.Fetch) error {
	if cfg == nil {
		return &ConfigurationError{"fetch options", "must be configured"}
	}

	checks := []error{
		requireText("UserAgent", cfg.UserAgent),
		requireText("BaseURL", cfg.BaseURL),
		requireText("MarketPath", cfg.MarketPath),
		requireText("VsCurrency", cfg.VsCurrency),
		requirePositive("PerPage", cfg.PerPage),
		requirePositive("MaxPage", cfg.MaxPage),
	}

	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	return nil
}

// HasRetrievedRecords returns true if a fetch returned at least one record.
func HasRetrievedRecords(records []*model.MarketRecord) bool {
	return len(records) > 0
}

// IsValidRecord returns true if the record has an external identifier.
func IsValidRecord(record *model.MarketRecord) bool {
	return record != nil && strings.TrimSpace(record.ID) != ""
}

// NormalizeToUTC returns the timestamp in UTC, or the fallback if it is nil.
//
// A timestamp without a zone is relabelled as UTC without shifting the wall
// clock. A zoned timestamp is converted to the same instant in UTC.
func NormalizeToUTC(timestamp *model.Timestamp, fallback time.Time) time.Time {
	if timestamp == nil {
		return fallback.UTC()
	}

	if !timestamp.Zoned {
		t := timestamp.Time

		return time.Date(
			t.Year(), t.Month(), t.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
			time.UTC,
		)
	}

	return timestamp.Time.UTC()
}

// IsUpdateNeeded returns true if candidate is strictly after lastKnown.
//
// A missing lastKnown always needs an update. Only times are compared, so a
// repeated timestamp carrying a different price is not recorded again.
func IsUpdateNeeded(lastKnown *time.Time, candidate time.Time) bool {
	if lastKnown == nil {
		return true
	}

	return candidate.UTC().After(lastKnown.UTC())
}

// HasSufficientHistoryForTrend returns true if there is at least one entry.
func HasSufficientHistoryForTrend(entries []model.HistoryEntry) bool {
	return len(entries) > 0
}
