// Package logging builds the slog loggers burstline writes to its console and
// log files.
//
// Two formats are supported: a single-line console format
// ("TIME LEVEL component: message key=value ...") and JSON. Both carry the
// same field names, so `burstline logs` can filter either by job, photo or
// session. WithContext copies the identifiers stored by the services package
// onto a logger, and WarnWithContext/ErrorWithContext make sure warnings and
// errors always say what happened and what to do next.
package logging
