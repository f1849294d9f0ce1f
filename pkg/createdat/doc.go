// Package createdat finds the creation timestamp embedded in a media file.
//
// QuickTime and MP4 containers are read through their movie header. Other
// files are tried for EXIF date tags first and an XMP DateCreated property
// second.
package createdat
