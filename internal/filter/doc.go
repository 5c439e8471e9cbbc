// Package filter narrows a set of declared dependencies before resolution.
// It supports inclusion and exclusion by artifactId, groupId, scope,
// classifier and type, as well as exclusion of modules that the current
// reactor builds itself.
//
// The package is built around the [Filter] interface and [Chain] type, which
// allow composable, ordered filter application.
package filter
