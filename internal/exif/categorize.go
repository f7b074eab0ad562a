package exif

import (
	"regexp"
	"strings"
)

// Categories in rule order, plus the catch-all.
const (
	CategoryGPS      = "gps"
	CategoryCamera   = "camera"
	CategoryExposure = "exposure"
	CategoryImage    = "image"
	CategoryOther    = "other"
)

// maxStringLen bounds kept string values; longer ones are thumbnails, maker
// notes and similar binary payloads.
const maxStringLen = 200

// Data groups extracted fields by category.
type Data map[string]map[string]any

// Rule maps field names matching Pattern to Category.
type Rule struct {
	Pattern  *regexp.Regexp
	Category string
}

// DefaultRules is evaluated top to bottom; the first match wins. GPS comes
// first so GPSDateTime is not claimed by the image date rule.
var DefaultRules = []Rule{
	{regexp.MustCompile(`(?i)^gps`), CategoryGPS},
	{regexp.MustCompile(`(?i)^(make|model|lens|serial|software|firmware|owner|camera|bodyserial|internalserial)`), CategoryCamera},
	{regexp.MustCompile(`(?i)(exposure|fnumber|aperture|iso|shutter|flash|focal|metering|whitebalance|brightness|lightvalue|scenecapture)`), CategoryExposure},
	{regexp.MustCompile(`(?i)(width|height|orientation|resolution|colorspace|datetime|date|bitspersample|compression|megapixels|imagesize|filetype|mimetype)`), CategoryImage},
}

// Categorize groups fields using rules, dropping values Filter rejects.
func Categorize(fields map[string]any, rules []Rule) Data {
	data := make(Data)
	for key, value := range fields {
		if !Keep(value) {
			continue
		}
		category := CategoryOther
		for _, rule := range rules {
			if rule.Pattern.MatchString(key) {
				category = rule.Category
				break
			}
		}
		if data[category] == nil {
			data[category] = make(map[string]any)
		}
		data[category][key] = value
	}
	return data
}

// Keep reports whether an extracted value is worth storing.
func Keep(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || strings.EqualFold(trimmed, "undef") {
			return false
		}
		if len(v) > maxStringLen || strings.HasPrefix(trimmed, "(Binary data") || strings.HasPrefix(trimmed, "base64:") {
			return false
		}
		return true
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
