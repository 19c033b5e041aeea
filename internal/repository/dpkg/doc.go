// Package dpkg reads the installed driver packages from the dpkg database.
//
// The Reader shells out to `dpkg-query --list <pattern>` and keeps only the
// rows whose status code marks the package as installed.
package dpkg
