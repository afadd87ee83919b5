package mqtt

import "strings"

// MatchTopic reports whether topic matches filter under MQTT's wildcard
// rules: '+' matches exactly one level, '#' matches any number of
// trailing levels and must be the final one. Grounded on
// soypat-natiu-mqtt's Subscriptions matching logic, adapted from its
// map-of-subscribers design down to a single-filter comparison since this
// client tracks subscriptions for local dispatch decisions rather than
// broker-side fan-out.
func MatchTopic(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && !strings.HasPrefix(filter, "$") {
		return false
	}
	fLevels := strings.Split(filter, "/")
	tLevels := strings.Split(topic, "/")

	for i, fl := range fLevels {
		if fl == "#" {
			return i == len(fLevels)-1
		}
		if i >= len(tLevels) {
			return false
		}
		if fl == "+" {
			continue
		}
		if fl != tLevels[i] {
			return false
		}
	}
	return len(fLevels) == len(tLevels)
}

// ValidTopicFilter reports whether filter uses '+' and '#' wildcards
// legally: each occupies a whole level, and '#' only appears as the last
// level.
func ValidTopicFilter(filter string) bool {
	if filter == "" {
		return false
	}
	levels := strings.Split(filter, "/")
	for i, lvl := range levels {
		switch {
		case lvl == "#":
			if i != len(levels)-1 {
				return false
			}
		case lvl == "+":
			// fine on its own
		case strings.ContainsAny(lvl, "+#"):
			return false
		}
	}
	return true
}

// ValidTopicName reports whether topic is legal as a PUBLISH topic: no
// wildcards at all, and non-empty.
func ValidTopicName(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
