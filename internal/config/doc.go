// Package config provides centralized configuration management for the
// rejection analysis tools. It loads configuration from multiple sources,
// validates it and hands typed structs to the components that need them.
//
// # Configuration Sources
//
// Configuration is layered in order of increasing precedence:
//
//	1. Default values (Default)
//	2. A YAML file (config.yaml or configs/config.yaml, or an explicit path)
//	3. Environment variables with the REJ_ prefix
//
// # Environment Variables
//
// Nested sections map to underscore-joined names:
//
//	REJ_SERVER_PORT=8080
//	REJ_LOGGING_LEVEL=debug
//	REJ_ANALYSIS_AGGREGATE_SHEET_NAMES=Stamping Rej,Stamping Rejection
//	REJ_ANALYSIS_DETAIL_ZERO_RATE=drop
//	REJ_ADVISORY_ENABLED=true
//	REJ_ADVISORY_API_KEY=...
//
// The category column list of the aggregate sheet can only be set from the
// YAML file:
//
//	analysis:
//	  aggregate:
//	    total_row: 49
//	    total_col: 2
//	    categories:
//	      - {label: Layer Open, col: 3}
//	      - {label: Water Mark, col: 4}
//
// # Validation
//
// Struct constraints are declared with validator tags; Validate adds the
// cross-field rules of the sheet coordinate contract (window ordering,
// distinct category columns).
package config
