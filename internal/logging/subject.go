package logging

import "strings"

// FormatSubject builds the component/object/stage subject string used in console output.
func FormatSubject(component, objectID, stage string) string {
	component = strings.TrimSpace(component)
	objectID = strings.TrimSpace(objectID)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 2)
	if component != "" {
		parts = append(parts, component)
	}
	switch {
	case objectID != "" && stage != "":
		parts = append(parts, "SNID "+objectID+" ("+stage+")")
	case objectID != "":
		parts = append(parts, "SNID "+objectID)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
