// Package models defines the observed state of tracked playlists.
//
//   - [Track] : an immutable (id, name, adder) value; equality is field-wise
//   - [TrackSet] : an unordered, duplicate-free set of tracks
//   - [PlaylistSnapshot] : one playlist's identity, version marker, membership & share URL at one fetch
//   - [Registry] : playlist name → latest snapshot for every configured name that was resolved
//
// Ordering inside a playlist carries no meaning here. Methods that return slices
// ([TrackSet.Sorted], [Registry.Names]) sort them so output and notifications are deterministic.
package models
