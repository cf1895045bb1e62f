// Package testsupport provides config and ledger helpers shared by package
// tests.
package testsupport
