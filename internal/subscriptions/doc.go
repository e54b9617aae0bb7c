// Package subscriptions tracks remote listings (channels, playlists) and
// downloads the entries that are not archived yet.
//
// Each poll fetches a flat snapshot of the listing, compares its size with
// the stored count, and moves the subscription into one of the checked
// states. Subscriptions flagged with new data then go through the missing
// pass, which skips entries already catalogued or on disk and hands the rest
// to the archiver. Failures never abort a run; they are collected into the
// run report.
package subscriptions
