package hgclient

import "time"

// addIf appends flag to args iff condition holds.
func addIf(args []string, condition bool, flag string) []string {
	if condition {
		return append(args, flag)
	}
	return args
}

// addPairIfNonEmpty appends prefix then value as two separate argv
// entries iff value is non-empty.
func addPairIfNonEmpty(args []string, prefix, value string) []string {
	if value == "" {
		return args
	}
	return append(args, prefix, value)
}

// addAllPairIfNonEmpty appends prefix/value for every non-empty value
// in values, preserving order — used for repeatable flags like
// --include/--rev.
func addAllPairIfNonEmpty(args []string, prefix string, values []string) []string {
	for _, v := range values {
		args = addPairIfNonEmpty(args, prefix, v)
	}
	return args
}

// dateLayout is the wire format hg expects for date-range and
// date-stamp arguments.
const dateLayout = "2006-01-02 15:04:05"

// addDateIf appends prefix then date formatted as "yyyy-MM-dd
// HH:mm:ss" iff date is non-nil.
func addDateIf(args []string, prefix string, date *time.Time) []string {
	if date == nil {
		return args
	}
	return append(args, prefix, date.Format(dateLayout))
}
