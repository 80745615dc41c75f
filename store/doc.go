// Package store persists Feature Records in a blob store, one blob per label.
//
// Records live under the "traindata/" prefix as "<escaped label>.bin" and are
// encoded with the persistence record format. Saving a label overwrites any
// previous record of that label; there is no delete or partial update.
package store
