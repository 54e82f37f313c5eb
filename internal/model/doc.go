package model

// Package model defines domain data structures shared by the queue, the
// extractor adapters and the UI adapters: job snapshots, status and quality
// enums, playlist resolutions, progress events and the error taxonomy.
// Snapshots are plain values so they can be handed to any goroutine.
