// Package apt drives apt-get and apt-mark.
//
// Client covers the four package-manager operations the update cycle needs:
// refreshing the index, upgrading everything, and holding or releasing a
// set of packages.
package apt
