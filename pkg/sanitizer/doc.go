// Package sanitizer normalizes free-text request fields before validation and storage.
//
// All functions are idempotent: applying them twice yields the same result.
// Invalid input degrades to an empty string, and slices drop empty and
// duplicate values after normalization, so validation sees the cleaned form.
//
// Normalization includes:
//   - Text: collapse whitespace runs, trim leading and trailing spaces
//   - Labels: text normalization plus lowercasing ("Physio Therapy " becomes "physio therapy")
//   - Time slots: trim only; "Mon 12:00" and "9:30" are kept as written
package sanitizer
