// Package geo resolves client IP addresses to coarse location strings for
// session tagging. Lookups are best-effort: callers treat every failure as
// "location unknown" and never fail an authentication flow over geolocation.
package geo
