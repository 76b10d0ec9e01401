// Package di wires the cache components of an application once and hands
// them to every repository it builds.
package di
