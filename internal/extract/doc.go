// Package extract recovers data the marketplace embeds in its HTML pages.
//
// Most marketplace pages render their payload as JavaScript declarations
// (var item_details = {...};) inside <script> blocks rather than exposing it
// through an API. Extract scans every script block, captures the raw
// right-hand side of each var/let/const declaration with a bracket- and
// string-aware scanner, and coerces it into a Value.
//
// PastOwners parses the per-copy history page into an ordered owner list
// (most recent first).
package extract
