// Package catalog persists photo sessions, their photos and sittings, and
// implements the transactional session mutations.
//
// A session owns an ordered set of photos. Between operations the owned
// positions are the contiguous zero-based sequence 0..photo_count-1 and
// photo_count equals the number of owned rows. Merge and Split are the only
// operations that move photos between sessions; both run in one transaction
// and hold an in-process lock on every session they touch.
//
// Processing stages update photos through the column-scoped setters
// (SetAttachment, SetExif, SetFaces, SetPortraitCrop) which never touch
// session ownership or position, so a worker racing a merge cannot undo it.
package catalog
