// Package models defines domain entities and persistence interfaces for crossfade.
//
// The package contains two categories of types:
//
// 1. Transfer types shared by the platform clients and the converter
//   - [Track] : Song metadata in platform-neutral form
//   - [PlaylistData] : A source playlist read from one platform
//   - [ConversionResult] : Reconciled outcome of recreating a playlist on the other platform
//   - [AuthSession] : A platform access token with its expiry
//
// 2. Persistent entities for conversion history
//   - [ConversionRecord] : One conversion run with its counts and status
//   - [ConversionTrack] : Per-track outcome of a run, in source order
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
