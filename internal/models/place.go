// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package models

import "strings"

// UnknownPlace is used when the feed omits the place description.
const UnknownPlace = "Unknown"

// Feed place strings look like "10 km NE of Ridgecrest, CA",
// "Southern Alaska" or "south of the Fiji Islands". The helpers below are
// the only place that free text is interpreted.

// ExtractRegion returns the text after the last comma, trimmed. Without a
// comma the whole trimmed string is the region. An empty input yields
// UnknownPlace.
//
//	"10 km NE of Ridgecrest, CA" -> "CA"
//	"Southern Alaska"            -> "Southern Alaska"
func ExtractRegion(place string) string {
	if i := strings.LastIndex(place, ","); i >= 0 {
		place = place[i+1:]
	}
	place = strings.TrimSpace(place)
	if place == "" {
		return UnknownPlace
	}
	return place
}

// ExtractCity returns the locality named before the last comma with any
// leading "<distance> <bearing> of " prefix removed. Without a comma the
// text after " of " is used when present; otherwise there is no city.
//
//	"10 km NE of Ridgecrest, CA" -> "Ridgecrest"
//	"Ridgecrest, CA"             -> "Ridgecrest"
//	"south of the Fiji Islands"  -> "the Fiji Islands"
//	"Southern Alaska"            -> ""
func ExtractCity(place string) string {
	head := place
	if i := strings.LastIndex(place, ","); i >= 0 {
		head = place[:i]
	} else if !strings.Contains(place, " of ") {
		return ""
	}
	if i := strings.LastIndex(head, " of "); i >= 0 {
		head = head[i+len(" of "):]
	}
	return strings.TrimSpace(head)
}

// CleanRegionName strips a leading "<value> of " prefix used for cluster
// region labels. Only the segment directly after the first " of " is kept,
// so "5 km S of Town of Cats, CA" becomes "Town".
func CleanRegionName(place string) string {
	parts := strings.Split(place, " of ")
	if len(parts) < 2 {
		return place
	}
	return parts[1]
}

// MatchesAnyRegion reports whether place contains any of regions as a
// case-sensitive substring.
func MatchesAnyRegion(place string, regions []string) bool {
	for _, r := range regions {
		if r != "" && strings.Contains(place, r) {
			return true
		}
	}
	return false
}
