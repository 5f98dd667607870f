// Package testutil provides shared fixtures for respcache tests: a scripted
// HTTP origin that counts requests, a controllable clock, and a MinIO
// container for S3 medium integration tests.
package testutil
