// Package state defines the raw mutable containers that changetrack observes:
// records, sequences, dictionaries and sets. Containers are ordinary pointer
// values; pointer identity is container identity. Nothing in this package
// records changes. Tracking views in package track wrap these containers and
// expose the same access interfaces.
package state
