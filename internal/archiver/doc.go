// Package archiver runs the direct download pipeline: resolve the URL's
// template, route the destination, predict the file name, download through
// yt-dlp when the file is not already present, then hand the file to the
// dedup service so it is catalogued exactly once.
//
// The subscription engine reuses the same pipeline for missing entries.
package archiver
