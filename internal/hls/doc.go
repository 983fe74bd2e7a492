// Package hls knows the on-disk layout of ffmpeg's HLS output: which files
// are playlists and segments, how to purge them, how to wait for one to
// appear, and how to claim exclusive ownership of the output directory.
package hls
