// Package status serves the read-only health and debug endpoints.
//
//	GET /health            200 when Connected, 503 otherwise
//	GET /debug/connection  manager statistics and registered component views
package status
