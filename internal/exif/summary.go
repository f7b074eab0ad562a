package exif

import (
	"fmt"
	"strings"
	"time"
)

// exiftool's date format; sub-seconds and offsets are optional.
var dateLayouts = []string{
	"2006:01:02 15:04:05.000-07:00",
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05.000",
	"2006:01:02 15:04:05",
}

func (d Data) lookup(category, field string) (any, bool) {
	fields, ok := d[category]
	if !ok {
		return nil, false
	}
	value, ok := fields[field]
	return value, ok
}

func (d Data) str(category, field string) string {
	value, ok := d.lookup(category, field)
	if !ok {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (d Data) number(category, field string) (float64, bool) {
	value, ok := d.lookup(category, field)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Orientation returns the EXIF orientation (1-8), defaulting to 1.
func (d Data) Orientation() int {
	if n, ok := d.number(CategoryImage, "Orientation"); ok && n >= 1 && n <= 8 {
		return int(n)
	}
	return 1
}

// TakenAt parses DateTimeOriginal, falling back to CreateDate.
func (d Data) TakenAt() (time.Time, bool) {
	for _, field := range []string{"DateTimeOriginal", "CreateDate"} {
		raw := d.str(CategoryImage, field)
		if raw == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// Summary flattens the commonly displayed fields into a metadata map.
func (d Data) Summary() map[string]any {
	summary := make(map[string]any)
	camera := strings.TrimSpace(d.str(CategoryCamera, "Make") + " " + d.str(CategoryCamera, "Model"))
	if camera != "" {
		summary["camera"] = camera
	}
	if lens := d.str(CategoryCamera, "LensModel"); lens != "" {
		summary["lens"] = lens
	}
	numbers := []struct{ category, field, key string }{
		{CategoryExposure, "ISO", "iso"},
		{CategoryExposure, "FNumber", "aperture"},
		{CategoryExposure, "ExposureTime", "shutter"},
		{CategoryExposure, "FocalLength", "focal_length"},
		{CategoryImage, "ImageWidth", "width"},
		{CategoryImage, "ImageHeight", "height"},
		{CategoryGPS, "GPSLatitude", "latitude"},
		{CategoryGPS, "GPSLongitude", "longitude"},
	}
	for _, n := range numbers {
		if value, ok := d.number(n.category, n.field); ok {
			summary[n.key] = value
		}
	}
	summary["orientation"] = d.Orientation()
	if taken, ok := d.TakenAt(); ok {
		summary["taken_at"] = taken.Format(time.RFC3339)
	}
	return summary
}
