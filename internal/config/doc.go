// Package config provides centralized configuration for Ferroci Analyzer.
//
// # Configuration Sources
//
// Configuration is built from the following sources, later ones winning:
//
//	1. Default values (Default)
//	2. config.yaml or configs/config.yaml next to the executable or in the
//	   working directory
//	3. Environment variables
//
// # Environment Variables
//
// All variables use the FERROCI_ prefix followed by the section name:
//
//	FERROCI_SERVER_PORT=8080
//	FERROCI_LOGGING_LEVEL=debug
//	FERROCI_ANALYSIS_HEADER_LINES=25
//	FERROCI_ANALYSIS_ALIGNMENT=interpolate
//	FERROCI_ANALYSIS_METRICS=Sum_Abs_Difference,Min_Max_Range,Peak_Current
//
// # Analysis Section
//
// The analysis section decides how instrument exports are read and compared:
// either a fixed number of preamble lines (header_lines) or the line starting
// with column_marker ends the metadata block; alignment picks how a sample is
// paired with the reference when lengths differ; metrics lists the metric
// columns in output order.
//
// # Path Management
//
// Paths resolves the application-owned locations (logs, config file) relative
// to the executable. Results are always written next to the dropped files.
package config
