// Package upload stores citizen profile photos on local disk.
//
// Files are renamed to a ULID-derived reference before they hit the
// filesystem, so the stored name carries no personal information and
// cannot collide with a concurrent upload.
package upload
