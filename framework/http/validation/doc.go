// Package validation checks flat string maps against pipe-separated rules.
//
// The framework uses it for environment configuration and for query
// parameters on the container diagnostics routes, where every value arrives
// as a string.
//
// # Basic Usage
//
//	v := validation.Make(map[string]string{
//	    "LOG_FORMAT": "json",
//	    "APP_PORT":   "8000",
//	}, validation.Rules{
//	    "LOG_FORMAT": "required|in:json,console",
//	    "APP_PORT":   "required|integer|gte:1|lte:65535",
//	})
//
//	if err := v.Err(); err != nil {
//	    // err is *validation.Errors
//	}
//
// Fields are checked in sorted order and each field stops at its first
// failing rule.
//
// # Available Rules
//
// Presence:
//   - required: non-empty after trimming spaces
//   - nullable, sometimes: an empty value skips the remaining rules
//
// Length (UTF-8 characters):
//   - min:n, max:n, between:lo,hi
//
// Type:
//   - numeric, integer
//   - boolean: anything strconv.ParseBool accepts
//
// Numeric comparison:
//   - gt:n, gte:n, lt:n, lte:n
//
// Membership and format:
//   - in:a,b,c and not_in:a,b,c
//   - alpha_dash: letters, numbers, dashes, underscores
//   - regex:pattern
//
// An unknown rule name fails the field so typos in rule strings surface.
//
// # Error Bag
//
// Errors serialises as
//
//	{"errors": {"APP_PORT": ["The APP_PORT must be an integer."]}}
//
// and implements error, joining every message in field order.
package validation
