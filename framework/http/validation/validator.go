package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation errors keyed by field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields returns the failing field names in sorted order.
func (e *Errors) Fields() []string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Error joins every message, fields in sorted order.
func (e *Errors) Error() string {
	var msgs []string
	for _, f := range e.Fields() {
		msgs = append(msgs, e.Bag[f]...)
	}
	return strings.Join(msgs, " ")
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"APP_PORT": "required|integer|gte:1", "LOG_FORMAT": "in:json,console"}
type Rules map[string]string

// Validator validates a flat map of input values.
type Validator struct {
	data   map[string]string
	rules  Rules
	errors *Errors
	ran    bool
}

// Make creates a new Validator.
func Make(data map[string]string, rules Rules) *Validator {
	return &Validator{
		data:   data,
		rules:  rules,
		errors: &Errors{},
	}
}

// Fails runs validation once and returns true if any rule fails.
func (v *Validator) Fails() bool {
	if !v.ran {
		v.validate()
		v.ran = true
	}
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors { return v.errors }

// Err returns the error bag as an error, or nil when validation passed.
func (v *Validator) Err() error {
	if v.Fails() {
		return v.errors
	}
	return nil
}

// ── Core validation loop ─────────────────────────────────────────────────────

func (v *Validator) validate() {
	fields := make([]string, 0, len(v.rules))
	for f := range v.rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := v.data[field]
		for _, rule := range strings.Split(v.rules[field], "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}

			// min:3 → name=min, param=3
			name, param, _ := strings.Cut(rule, ":")

			if !v.applyRule(field, value, name, param) {
				break // bail on first failure
			}
		}
	}
}

// applyRule returns true if the rule passes and later rules should run.
func (v *Validator) applyRule(field, value, rule, param string) bool {
	switch rule {
	case "required":
		if strings.TrimSpace(value) == "" {
			v.errors.add(field, fmt.Sprintf("The %s field is required.", field))
			return false
		}

	case "nullable", "sometimes":
		// empty values skip the remaining rules
		if value == "" {
			return false
		}

	case "numeric":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s must be a number.", field))
			return false
		}

	case "integer":
		if _, err := strconv.Atoi(value); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s must be an integer.", field))
			return false
		}

	case "boolean":
		if _, err := strconv.ParseBool(value); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s field must be true or false.", field))
			return false
		}

	case "min", "max", "between":
		return v.length(field, value, rule, param)

	case "in":
		if !contains(param, value) {
			v.errors.add(field, fmt.Sprintf("The selected %s is invalid. Allowed: %s.", field, param))
			return false
		}

	case "not_in":
		if contains(param, value) {
			v.errors.add(field, fmt.Sprintf("The selected %s is invalid.", field))
			return false
		}

	case "alpha_dash":
		if !alphaDash.MatchString(value) {
			v.errors.add(field, fmt.Sprintf("The %s may only contain letters, numbers, dashes and underscores.", field))
			return false
		}

	case "regex":
		re, err := regexp.Compile(param)
		if err != nil || !re.MatchString(value) {
			v.errors.add(field, fmt.Sprintf("The %s format is invalid.", field))
			return false
		}

	case "gt", "gte", "lt", "lte":
		return v.compare(field, value, rule, param)

	default:
		v.errors.add(field, fmt.Sprintf("Unknown rule %q on %s.", rule, field))
		return false
	}

	return true
}

var alphaDash = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func (v *Validator) length(field, value, rule, param string) bool {
	n := utf8.RuneCountInString(value)
	switch rule {
	case "min":
		lo, _ := strconv.Atoi(param)
		if n < lo {
			v.errors.add(field, fmt.Sprintf("The %s must be at least %d characters.", field, lo))
			return false
		}
	case "max":
		hi, _ := strconv.Atoi(param)
		if n > hi {
			v.errors.add(field, fmt.Sprintf("The %s may not be greater than %d characters.", field, hi))
			return false
		}
	case "between":
		a, b, ok := strings.Cut(param, ",")
		if !ok {
			return true
		}
		lo, _ := strconv.Atoi(strings.TrimSpace(a))
		hi, _ := strconv.Atoi(strings.TrimSpace(b))
		if n < lo || n > hi {
			v.errors.add(field, fmt.Sprintf("The %s must be between %d and %d characters.", field, lo, hi))
			return false
		}
	}
	return true
}

var comparisons = map[string]struct {
	ok   func(a, b float64) bool
	text string
}{
	"gt":  {func(a, b float64) bool { return a > b }, "greater than"},
	"gte": {func(a, b float64) bool { return a >= b }, "greater than or equal to"},
	"lt":  {func(a, b float64) bool { return a < b }, "less than"},
	"lte": {func(a, b float64) bool { return a <= b }, "less than or equal to"},
}

func (v *Validator) compare(field, value, rule, param string) bool {
	f, err := strconv.ParseFloat(value, 64)
	t, _ := strconv.ParseFloat(param, 64)
	c := comparisons[rule]
	if err != nil || !c.ok(f, t) {
		v.errors.add(field, fmt.Sprintf("The %s must be %s %s.", field, c.text, param))
		return false
	}
	return true
}

func contains(list, value string) bool {
	for _, a := range strings.Split(list, ",") {
		if strings.TrimSpace(a) == value {
			return true
		}
	}
	return false
}
