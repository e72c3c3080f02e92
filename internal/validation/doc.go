// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package validation validates HTTP request parameters with
// go-playground/validator v10.
//
// A single validator instance is shared by every caller; it caches struct
// metadata and is safe for concurrent use. Failures come back as a
// *RequestValidationError whose messages name the offending query
// parameter rather than the Go field.
//
//	type NearbyRequest struct {
//	    Lat    float64 `query:"lat" validate:"latitude"`
//	    Lon    float64 `query:"lon" validate:"longitude"`
//	    Radius float64 `query:"radius_km" validate:"gt=0,lte=20000"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    // 400 with verr.Fields()
//	}
//
// Custom tags:
//   - bbox: "west,south,east,north" in degrees with south <= north
package validation
