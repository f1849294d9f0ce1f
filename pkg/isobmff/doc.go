// Package isobmff extracts the movie header timestamps from ISO base media
// file format containers (QuickTime MOV, MP4).
//
// Boxes are read one sibling at a time from the current position. Only the
// first child of moov is inspected and it must be mvhd.
package isobmff
