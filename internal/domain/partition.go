package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ArtifactPrefix and ArtifactExt name the single Parquet object in a partition.
const (
	ArtifactPrefix = "weather_data_"
	ArtifactExt    = ".parquet"
)

// PartitionKey identifies the storage partition of one location and date.
type PartitionKey struct {
	Location string // normalized location name
	Year     int
	Month    int
	Day      int
}

// KeyFor derives the partition key of a location and date.
func KeyFor(loc Location, date time.Time) PartitionKey {
	return PartitionKey{
		Location: loc.PartitionName(),
		Year:     date.Year(),
		Month:    int(date.Month()),
		Day:      date.Day(),
	}
}

// Date returns the calendar date the partition holds.
func (k PartitionKey) Date() time.Time {
	return time.Date(k.Year, time.Month(k.Month), k.Day, 0, 0, 0, 0, time.UTC)
}

// Prefix returns the hive-style directory of the partition, without a
// trailing slash.
func (k PartitionKey) Prefix() string {
	return fmt.Sprintf("location=%s/year=%04d/month=%02d/day=%02d", k.Location, k.Year, k.Month, k.Day)
}

// ArtifactName returns the file name of the partition's Parquet artifact.
func (k PartitionKey) ArtifactName() string {
	return ArtifactPrefix + FormatDate(k.Date()) + ArtifactExt
}

// ObjectKey returns the full object key of the partition's artifact,
// relative to the store root.
func (k PartitionKey) ObjectKey() string {
	return k.Prefix() + "/" + k.ArtifactName()
}

func (k PartitionKey) String() string {
	return k.Prefix()
}

// NormalizeLocationName replaces every run of non-alphanumeric characters
// with a single underscore and trims underscores from both ends,
// e.g. "Menlo Park, CA" -> "Menlo_Park_CA".
func NormalizeLocationName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
